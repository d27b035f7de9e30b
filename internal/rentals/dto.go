package rentals

import (
	"time"

	"github.com/maisonlocation/costume-rental-backend/internal/catalog"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/types"
)

// RentalDTO is the API shape of a rental. TotalPrice is a fixed two-decimal string.
type RentalDTO struct {
	ID                 int64               `json:"id"`
	UserID             *int64              `json:"user_id"`
	GuestName          *string             `json:"guest_name"`
	GuestPhone         *string             `json:"guest_phone"`
	GuestAddress       *string             `json:"guest_address"`
	CostumeID          int64               `json:"costume_id"`
	StartDate          types.Date          `json:"start_date"`
	ExpectedReturnDate types.Date          `json:"expected_return_date"`
	ReturnedAt         *types.Date         `json:"returned_at"`
	TotalPrice         string              `json:"total_price"`
	Costume            *catalog.CostumeDTO `json:"costume,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func FromModel(r *models.Rental) *RentalDTO {
	if r == nil {
		return nil
	}
	return &RentalDTO{
		ID:                 r.ID,
		UserID:             r.UserID,
		GuestName:          r.GuestName,
		GuestPhone:         r.GuestPhone,
		GuestAddress:       r.GuestAddress,
		CostumeID:          r.CostumeID,
		StartDate:          r.StartDate,
		ExpectedReturnDate: r.ExpectedReturnDate,
		ReturnedAt:         r.ReturnedAt,
		TotalPrice:         r.TotalPrice.StringFixed(2),
		Costume:            catalog.FromModel(r.Costume),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}
