package users

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/maisonlocation/costume-rental-backend/pkg/db"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
)

func setupUsersRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:users_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	return NewRepository(conn)
}

func TestCreateAndFindUser(t *testing.T) {
	repo := setupUsersRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{Name: "Ada", Email: "  Ada@Example.com ", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, enums.UserRoleCustomer, created.Role)

	found, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.Name)

	_, err = repo.FindByID(ctx, created.ID+100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := setupUsersRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, CreateUserDTO{Name: "A", Email: "dup@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, CreateUserDTO{Name: "B", Email: "DUP@example.com", PasswordHash: "h"})
	require.Error(t, err)
	assert.True(t, dbpkg.IsUniqueViolation(err, ""))
}

func TestRecordLogin(t *testing.T) {
	repo := setupUsersRepo(t)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Name: "A", Email: "a@example.com", PasswordHash: "old", Role: enums.UserRoleAdmin})
	require.NoError(t, err)

	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordLogin(ctx, user.ID, first, ""))
	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	assert.True(t, reloaded.LastLoginAt.Equal(first))
	assert.Equal(t, "old", reloaded.PasswordHash, "an empty rehash keeps the stored hash")

	second := first.Add(time.Hour)
	require.NoError(t, repo.RecordLogin(ctx, user.ID, second, "new"))
	reloaded, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.LastLoginAt.Equal(second))
	assert.Equal(t, "new", reloaded.PasswordHash)
	assert.Equal(t, enums.UserRoleAdmin, reloaded.Role)

	assert.ErrorIs(t, repo.RecordLogin(ctx, user.ID+100, second, ""), gorm.ErrRecordNotFound)

	dto := FromModel(reloaded)
	assert.Equal(t, user.ID, dto.ID)
	assert.Nil(t, FromModel(nil))
}
