package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox/payloads"
	"github.com/maisonlocation/costume-rental-backend/pkg/types"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// defaultOverdueBatch matches the COSTUMERENT_CRON_OVERDUE_BATCH_SIZE default.
const defaultOverdueBatch = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type overdueReader interface {
	ListOverdue(ctx context.Context, today types.Date, limit int) ([]models.Rental, error)
}

type overdueEmitter interface {
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.RentalEvent) (bool, error)
}

type OverdueJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Rentals   overdueReader
	Outbox    overdueEmitter
	BatchSize int
}

func NewOverdueJob(params OverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Rentals == nil {
		return nil, fmt.Errorf("rental reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOverdueBatch
	}
	return &overdueJob{
		logg:    params.Logger,
		db:      params.DB,
		rentals: params.Rentals,
		outbox:  params.Outbox,
		batch:   batch,
		now:     time.Now,
	}, nil
}

// overdueJob emits rental_overdue once per active rental whose expected
// return date has passed. Each run takes the next batch of unflagged rentals,
// so a backlog larger than the batch drains over successive cycles.
type overdueJob struct {
	logg    *logger.Logger
	db      txRunner
	rentals overdueReader
	outbox  overdueEmitter
	batch   int
	now     func() time.Time
}

func (j *overdueJob) Name() string { return "rental-overdue" }

func (j *overdueJob) Run(ctx context.Context) error {
	today := types.NewDate(j.now().UTC())
	overdue, err := j.rentals.ListOverdue(ctx, today, j.batch)
	if err != nil {
		return fmt.Errorf("list overdue rentals: %w", err)
	}

	var errs error
	emitted := 0
	for _, rental := range overdue {
		created, err := j.emit(ctx, rental, today)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rental %d: %w", rental.ID, err))
			continue
		}
		if created {
			emitted++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue": len(overdue),
		"emitted": emitted,
		"today":   today.String(),
	})
	j.logg.Info(logCtx, "overdue sweep complete")
	return errs
}

func (j *overdueJob) emit(ctx context.Context, rental models.Rental, today types.Date) (bool, error) {
	var created bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := j.outbox.EmitOnce(ctx, tx, outbox.RentalEvent{
			Type: enums.EventRentalOverdue,
			Payload: payloads.RentalOverdueEvent{
				RentalID:           rental.ID,
				CostumeID:          rental.CostumeID,
				UserID:             rental.UserID,
				ExpectedReturnDate: rental.ExpectedReturnDate.String(),
				DaysOverdue:        today.DaysSince(rental.ExpectedReturnDate.Date),
			},
		})
		created = ok
		return err
	})
	return created, err
}
