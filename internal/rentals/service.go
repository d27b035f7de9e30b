package rentals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maisonlocation/costume-rental-backend/pkg/config"
	"github.com/maisonlocation/costume-rental-backend/pkg/db"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	"github.com/maisonlocation/costume-rental-backend/pkg/metrics"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox/payloads"
	"github.com/maisonlocation/costume-rental-backend/pkg/types"
	"gorm.io/gorm"
)

const (
	operationCreate = "create"
	operationReturn = "return"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	Dialect() string
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.RentalEvent) error
}

type bookingObserver interface {
	Observe(operation, outcome string, elapsed time.Duration)
}

// Service books and returns costumes and guards rental reads.
type Service struct {
	db      txRunner
	ledger  *Ledger
	outbox  outboxEmitter
	cfg     config.BookingConfig
	metrics bookingObserver
	logg    *logger.Logger
	now     func() time.Time
}

// ServiceParams bundles the booking service dependencies.
type ServiceParams struct {
	DB      txRunner
	Ledger  *Ledger
	Outbox  outboxEmitter
	Config  config.BookingConfig
	Metrics bookingObserver
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("rental ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Metrics == nil {
		params.Metrics = (*metrics.BookingMetrics)(nil)
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{
		db:      params.DB,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		cfg:     params.Config,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     params.Now,
	}, nil
}

func (s *Service) today() types.Date {
	return types.NewDate(s.now().UTC())
}

// CreateRental atomically claims the costume and records the rental. Of any
// number of concurrent calls for one available costume exactly one succeeds.
func (s *Service) CreateRental(ctx context.Context, costumeID int64, period Period, holder Holder) (*models.Rental, error) {
	started := time.Now()
	rental, err := s.createRental(ctx, costumeID, period, holder)
	s.metrics.Observe(operationCreate, createOutcome(err), time.Since(started))
	return rental, err
}

func (s *Service) createRental(ctx context.Context, costumeID int64, period Period, holder Holder) (*models.Rental, error) {
	if err := period.validate(s.today()); err != nil {
		return nil, err
	}
	holder = holder.normalized()
	if err := holder.validate(); err != nil {
		return nil, err
	}
	if costumeID <= 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrCostumeNotFound, "costume not found")
	}

	ctx, cancel := s.withBookingTimeout(ctx)
	defer cancel()

	var rental *models.Rental
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.applyLockTimeout(tx); err != nil {
			return err
		}

		claimed, err := s.ledger.ClaimCostume(tx, costumeID)
		if err != nil {
			return err
		}
		if !claimed {
			exists, err := s.ledger.CostumeExists(tx, costumeID)
			if err != nil {
				return err
			}
			if !exists {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrCostumeNotFound, "costume not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeUnavailable, ErrCostumeUnavailable, "Costume is not available")
		}

		costume, err := s.ledger.LoadCostume(tx, costumeID)
		if err != nil {
			return err
		}

		rental = &models.Rental{
			UserID:             holder.UserID,
			CostumeID:          costume.ID,
			StartDate:          period.Start,
			ExpectedReturnDate: period.ExpectedReturn,
			TotalPrice:         costume.Price,
		}
		if holder.Guest != nil {
			rental.GuestName = &holder.Guest.Name
			rental.GuestPhone = &holder.Guest.Phone
			rental.GuestAddress = &holder.Guest.Address
		}
		if err := s.ledger.InsertRental(tx, rental); err != nil {
			return err
		}
		rental.Costume = costume

		var actor *outbox.ActorRef
		if holder.UserID != nil {
			actor = &outbox.ActorRef{UserID: *holder.UserID, Role: string(enums.UserRoleCustomer)}
		}
		return s.outbox.Emit(ctx, tx, outbox.RentalEvent{
			Type:       enums.EventRentalCreated,
			Actor:      actor,
			OccurredAt: s.now(),
			Payload: payloads.RentalCreatedEvent{
				RentalID:           rental.ID,
				CostumeID:          costume.ID,
				UserID:             holder.UserID,
				Guest:              holder.Guest != nil,
				StartDate:          period.Start.String(),
				ExpectedReturnDate: period.ExpectedReturn.String(),
				TotalPrice:         rental.TotalPrice.StringFixed(2),
			},
		})
	})
	if err != nil {
		return nil, s.classify(ctx, err, "create rental")
	}

	logCtx := s.logg.WithRentalID(ctx, rental.ID)
	logCtx = s.logg.WithField(logCtx, "costume_id", costumeID)
	s.logg.Info(logCtx, "rental created")
	return rental, nil
}

// ReturnRental closes an active rental and frees its costume.
func (s *Service) ReturnRental(ctx context.Context, rentalID int64) (*models.Rental, error) {
	started := time.Now()
	rental, err := s.returnRental(ctx, rentalID)
	s.metrics.Observe(operationReturn, returnOutcome(err), time.Since(started))
	return rental, err
}

func (s *Service) returnRental(ctx context.Context, rentalID int64) (*models.Rental, error) {
	if rentalID <= 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrRentalNotFound, "rental not found")
	}

	ctx, cancel := s.withBookingTimeout(ctx)
	defer cancel()

	today := s.today()
	var rental *models.Rental
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.applyLockTimeout(tx); err != nil {
			return err
		}

		current, err := s.ledger.FindRentalTx(tx, rentalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrRentalNotFound, "rental not found")
			}
			return err
		}
		if !current.IsActive() {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrAlreadyReturned, "rental already returned")
		}

		returnedAt := today.Max(current.StartDate)
		updated, err := s.ledger.MarkReturned(tx, rentalID, returnedAt)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrAlreadyReturned, "rental already returned")
		}
		if err := s.ledger.ReleaseCostume(tx, current.CostumeID); err != nil {
			return err
		}

		current.ReturnedAt = &returnedAt
		rental = current
		return s.outbox.Emit(ctx, tx, outbox.RentalEvent{
			Type: enums.EventRentalReturned,
			Payload: payloads.RentalReturnedEvent{
				RentalID:   current.ID,
				CostumeID:  current.CostumeID,
				ReturnedAt: returnedAt.String(),
			},
		})
	})
	if err != nil {
		return nil, s.classify(ctx, err, "return rental")
	}

	s.logg.Info(s.logg.WithRentalID(ctx, rental.ID), "rental returned")
	return rental, nil
}

// GetRental returns the rental when caller owns it or is an admin. A missing
// rental is reported before ownership is checked.
func (s *Service) GetRental(ctx context.Context, rentalID int64, caller Caller) (*models.Rental, error) {
	if rentalID <= 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrRentalNotFound, "rental not found")
	}
	rental, err := s.ledger.FindRental(ctx, rentalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrRentalNotFound, "rental not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load rental")
	}
	if caller.isAdmin() {
		return rental, nil
	}
	if rental.UserID == nil || *rental.UserID != caller.UserID {
		return nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, ErrForbidden, "rental belongs to another holder")
	}
	return rental, nil
}

func (s *Service) withBookingTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *Service) applyLockTimeout(tx *gorm.DB) error {
	if s.cfg.LockTimeout <= 0 || s.db.Dialect() != "postgres" {
		return nil
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.cfg.LockTimeout.Milliseconds())
	return tx.Exec(stmt).Error
}

// classify turns a failed booking transaction into a client-facing error.
// Contention and our own timeout are retryable Busy; a caller that went away
// is Canceled. Neither is a server fault.
func (s *Service) classify(ctx context.Context, err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	logCtx := s.logg.WithField(ctx, "operation", op)
	switch {
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		s.logg.Info(logCtx, "booking abandoned by caller")
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, errors.Join(ErrCanceled, err), op)
	case db.IsContention(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		s.logg.Warn(logCtx, "booking contention")
		return pkgerrors.Wrap(pkgerrors.CodeBusy, errors.Join(ErrBusy, err), op)
	}
	s.logg.Error(logCtx, op+" failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

func createOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCreated
	case errors.Is(err, ErrCostumeUnavailable):
		return metrics.OutcomeUnavailable
	case errors.Is(err, ErrCostumeNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInvalidPeriod), errors.Is(err, ErrInvalidHolder):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrBusy):
		return metrics.OutcomeBusy
	case errors.Is(err, ErrCanceled):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeError
	}
}

func returnOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeReturned
	case errors.Is(err, ErrRentalNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrAlreadyReturned):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrBusy):
		return metrics.OutcomeBusy
	case errors.Is(err, ErrCanceled):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeError
	}
}
