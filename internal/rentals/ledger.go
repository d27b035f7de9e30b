package rentals

import (
	"context"

	"github.com/maisonlocation/costume-rental-backend/internal/repo"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	"github.com/maisonlocation/costume-rental-backend/pkg/types"
	"gorm.io/gorm"
)

// Ledger is the rental store. Methods taking tx must run inside the booking
// or return transaction; the others read through the bound connection.
type Ledger struct {
	repo.Base
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{Base: repo.NewBase(db)}
}

// ClaimCostume flips is_available from true to false and reports whether this
// caller won the costume.
func (l *Ledger) ClaimCostume(tx *gorm.DB, costumeID int64) (bool, error) {
	res := tx.Model(&models.Costume{}).
		Where("id = ? AND is_available = ?", costumeID, true).
		Update("is_available", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseCostume marks the costume bookable again.
func (l *Ledger) ReleaseCostume(tx *gorm.DB, costumeID int64) error {
	return tx.Model(&models.Costume{}).
		Where("id = ?", costumeID).
		Update("is_available", true).Error
}

func (l *Ledger) CostumeExists(tx *gorm.DB, costumeID int64) (bool, error) {
	return repo.Exists[models.Costume](tx, "id = ?", costumeID)
}

func (l *Ledger) LoadCostume(tx *gorm.DB, costumeID int64) (*models.Costume, error) {
	return repo.One[models.Costume](tx, "id = ?", costumeID)
}

func (l *Ledger) InsertRental(tx *gorm.DB, rental *models.Rental) error {
	return tx.Omit("Costume").Create(rental).Error
}

// MarkReturned sets returned_at on an active rental. It reports false when the
// rental is missing or already returned.
func (l *Ledger) MarkReturned(tx *gorm.DB, rentalID int64, returnedAt types.Date) (bool, error) {
	res := tx.Model(&models.Rental{}).
		Where("id = ? AND returned_at IS NULL", rentalID).
		Update("returned_at", returnedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (l *Ledger) FindRentalTx(tx *gorm.DB, rentalID int64) (*models.Rental, error) {
	return repo.One[models.Rental](tx, "id = ?", rentalID)
}

// FindRental loads a rental with its costume.
func (l *Ledger) FindRental(ctx context.Context, rentalID int64) (*models.Rental, error) {
	var rental models.Rental
	err := l.DB(ctx).
		Preload("Costume").
		First(&rental, "id = ?", rentalID).Error
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

// ListOverdue returns active rentals past their expected return date that have
// not been flagged yet, oldest first. Flagged rentals drop out so a bounded
// batch always reaches the next ones.
func (l *Ledger) ListOverdue(ctx context.Context, today types.Date, limit int) ([]models.Rental, error) {
	flagged := l.DB(ctx).
		Table("outbox_events").
		Select("1").
		Where("outbox_events.event_type = ?", enums.EventRentalOverdue).
		Where("outbox_events.aggregate_type = ?", enums.AggregateRental).
		Where("outbox_events.aggregate_id = CAST(rentals.id AS TEXT)")

	q := l.DB(ctx).
		Model(&models.Rental{}).
		Where("rentals.returned_at IS NULL AND rentals.expected_return_date < ?", today).
		Where("NOT EXISTS (?)", flagged).
		Order("rentals.expected_return_date ASC, rentals.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Rental
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
