package catalog

import (
	"time"

	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/types"
)

type CategoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CostumeDTO is the public catalog shape. Price is a fixed two-decimal string.
type CostumeDTO struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Size        string             `json:"size"`
	Price       string             `json:"price"`
	ImagePath   *string            `json:"image_path"`
	IsAvailable bool               `json:"is_available"`
	Quantity    int                `json:"quantity"`
	CategoryID  *int64             `json:"category_id"`
	Category    *CategoryDTO       `json:"category"`
	Rentals     []RentalHistoryDTO `json:"rentals,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// RentalHistoryDTO exposes a rental's period without holder details.
type RentalHistoryDTO struct {
	ID                 int64       `json:"id"`
	StartDate          types.Date  `json:"start_date"`
	ExpectedReturnDate types.Date  `json:"expected_return_date"`
	ReturnedAt         *types.Date `json:"returned_at"`
}

func FromModel(c *models.Costume) *CostumeDTO {
	if c == nil {
		return nil
	}
	dto := &CostumeDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Size:        c.Size,
		Price:       c.Price.StringFixed(2),
		ImagePath:   c.ImagePath,
		IsAvailable: c.IsAvailable,
		Quantity:    c.Quantity,
		CategoryID:  c.CategoryID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.Category != nil {
		dto.Category = &CategoryDTO{ID: c.Category.ID, Name: c.Category.Name}
	}
	if len(c.Rentals) > 0 {
		dto.Rentals = make([]RentalHistoryDTO, 0, len(c.Rentals))
		for _, r := range c.Rentals {
			dto.Rentals = append(dto.Rentals, RentalHistoryDTO{
				ID:                 r.ID,
				StartDate:          r.StartDate,
				ExpectedReturnDate: r.ExpectedReturnDate,
				ReturnedAt:         r.ReturnedAt,
			})
		}
	}
	return dto
}
