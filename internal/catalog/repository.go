package catalog

import (
	"context"

	"github.com/maisonlocation/costume-rental-backend/internal/repo"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads costumes and categories.
type Repository struct {
	repo.Base
}

// NewRepository binds a catalog repository to the supplied connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListCostumes returns every costume with its category, ordered by id.
func (r *Repository) ListCostumes(ctx context.Context) ([]models.Costume, error) {
	var costumes []models.Costume
	err := r.DB(ctx).
		Preload("Category").
		Order("id ASC").
		Find(&costumes).Error
	if err != nil {
		return nil, err
	}
	return costumes, nil
}

// FindCostume loads a costume with its category and rental history.
func (r *Repository) FindCostume(ctx context.Context, id int64) (*models.Costume, error) {
	var costume models.Costume
	err := r.DB(ctx).
		Preload("Category").
		Preload("Rentals", func(db *gorm.DB) *gorm.DB {
			return db.Order("rentals.id ASC")
		}).
		First(&costume, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &costume, nil
}
