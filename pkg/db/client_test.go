package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/maisonlocation/costume-rental-backend/pkg/config"
)

type costumeHold struct {
	ID        int
	CostumeID int64
}

func openClient(t *testing.T) *Client {
	t.Helper()
	dsn := fmt.Sprintf("file:db_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&costumeHold{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	client := NewFromConn(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func holds(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	if err := c.DB().Model(&costumeHold{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTxKeepsOnlyCommittedHolds(t *testing.T) {
	client := openClient(t)
	ctx := context.Background()

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&costumeHold{CostumeID: 1}).Error
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	errTaken := errors.New("costume taken")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&costumeHold{CostumeID: 2}).Error; err != nil {
			return err
		}
		return errTaken
	})
	if !errors.Is(err, errTaken) {
		t.Fatalf("expected fn error returned as is, got %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			tx.Create(&costumeHold{CostumeID: 3})
			panic("handler bug")
		})
	}()

	if got := holds(t, client); got != 1 {
		t.Fatalf("expected only the committed hold, got %d", got)
	}
}

func TestWithTxHonoursCanceledContext(t *testing.T) {
	client := openClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		ran = true
		return tx.Create(&costumeHold{CostumeID: 1}).Error
	})
	if err == nil {
		t.Fatal("expected canceled context to fail the transaction")
	}
	if ran && holds(t, client) != 0 {
		t.Fatal("canceled transaction left a hold behind")
	}
}

func TestPingAndDialect(t *testing.T) {
	client := openClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if got := client.Dialect(); got != "sqlite" {
		t.Fatalf("expected sqlite dialect, got %q", got)
	}
	var none *Client
	if got := none.Dialect(); got != "" {
		t.Fatalf("expected empty dialect for nil client, got %q", got)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatal("expected error without DSN")
	}
}

func TestTunePoolAppliesLimits(t *testing.T) {
	client := openClient(t)
	pool, err := client.DB().DB()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	tunePool(pool, config.DBConfig{MaxOpenConns: 3, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	if got := pool.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("expected 3 max open connections, got %d", got)
	}
}
