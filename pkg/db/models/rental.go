package models

import (
	"time"

	"github.com/maisonlocation/costume-rental-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Rental is held either by a registered user or by a guest, never both.
type Rental struct {
	ID                 int64           `gorm:"column:id;primaryKey;autoIncrement"`
	UserID             *int64          `gorm:"column:user_id;index"`
	GuestName          *string         `gorm:"column:guest_name"`
	GuestPhone         *string         `gorm:"column:guest_phone"`
	GuestAddress       *string         `gorm:"column:guest_address"`
	CostumeID          int64           `gorm:"column:costume_id;not null;index"`
	Costume            *Costume        `gorm:"foreignKey:CostumeID;constraint:OnDelete:CASCADE"`
	StartDate          types.Date      `gorm:"column:start_date;type:date;not null"`
	ExpectedReturnDate types.Date      `gorm:"column:expected_return_date;type:date;not null"`
	ReturnedAt         *types.Date     `gorm:"column:returned_at;type:date"`
	TotalPrice         decimal.Decimal `gorm:"column:total_price;type:numeric(8,2);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// IsGuest reports whether the rental was booked without an account.
func (r Rental) IsGuest() bool {
	return r.UserID == nil
}

// IsActive reports whether the costume is still out.
func (r Rental) IsActive() bool {
	return r.ReturnedAt == nil
}
