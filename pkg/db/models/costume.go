package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Costume is a single rentable item. IsAvailable is only flipped by the
// booking and return transactions.
type Costume struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string          `gorm:"column:name;not null"`
	Description string          `gorm:"column:description;not null;default:''"`
	Size        string          `gorm:"column:size;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(8,2);not null"`
	ImagePath   *string         `gorm:"column:image_path"`
	IsAvailable bool            `gorm:"column:is_available;not null;default:true"`
	Quantity    int             `gorm:"column:quantity;not null;default:1"`
	CategoryID  *int64          `gorm:"column:category_id"`
	Category    *Category       `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
	Rentals     []Rental        `gorm:"foreignKey:CostumeID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
