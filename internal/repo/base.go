package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the catalog, rental and user repositories. Reads go
// through DB(ctx); writes run on whatever transaction the caller hands in.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds the connection to ctx. A nil ctx gets the bare connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// One loads the row of T matching query. Misses surface as
// gorm.ErrRecordNotFound.
func One[T any](q *gorm.DB, query string, args ...any) (*T, error) {
	var row T
	if err := q.Where(query, args...).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Exists reports whether any row of T matches query.
func Exists[T any](q *gorm.DB, query string, args ...any) (bool, error) {
	var n int64
	if err := q.Model(new(T)).Where(query, args...).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
