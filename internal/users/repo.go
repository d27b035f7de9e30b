package users

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/maisonlocation/costume-rental-backend/internal/repo"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
)

// Repository stores customer and admin accounts. Emails are kept normalized,
// so lookups compare them as given.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create fails with a unique violation when the email is taken.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	return repo.One[models.User](r.DB(ctx), query, arg)
}

// RecordLogin stamps a successful login. A non-empty rehash replaces the
// stored password hash in the same update.
func (r *Repository) RecordLogin(ctx context.Context, id int64, at time.Time, rehash string) error {
	cols := map[string]any{"last_login_at": at}
	if rehash != "" {
		cols["password_hash"] = rehash
	}
	res := r.DB(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumns(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NormalizeEmail is applied on write and on lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
