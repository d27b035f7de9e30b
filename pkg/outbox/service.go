package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox/payloads"
)

// RentalEvent is a rental state change recorded in the same transaction as
// the write that caused it. OccurredAt defaults to the time of Emit.
type RentalEvent struct {
	Type       enums.OutboxEventType
	Actor      *ActorRef
	Payload    payloads.Rental
	OccurredAt time.Time
}

func (e RentalEvent) check() error {
	if e.Payload == nil {
		return fmt.Errorf("%s: payload required", e.Type)
	}
	if e.Payload.RentalRef() <= 0 {
		return fmt.Errorf("%s: payload has no rental id", e.Type)
	}
	var want enums.OutboxEventType
	switch e.Payload.(type) {
	case payloads.RentalCreatedEvent:
		want = enums.EventRentalCreated
	case payloads.RentalOverdueEvent:
		want = enums.EventRentalOverdue
	case payloads.RentalReturnedEvent:
		want = enums.EventRentalReturned
	}
	if e.Type != want {
		return fmt.Errorf("event type %q does not match payload %T", e.Type, e.Payload)
	}
	return nil
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit writes ev on tx so it commits or rolls back with the caller's work.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, ev RentalEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if err := ev.check(); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	env := PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: ev.OccurredAt.UTC(),
		Actor:      ev.Actor,
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	rentalID := strconv.FormatInt(ev.Payload.RentalRef(), 10)
	if err := s.repo.Insert(tx, models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     ev.Type,
		AggregateType: enums.AggregateRental,
		AggregateID:   rentalID,
		Payload:       body,
	}); err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":   env.EventID,
			"event_type": ev.Type,
			"rental_id":  rentalID,
		}), "outbox.queued")
	}
	return nil
}

// EmitOnce writes ev unless the rental already has an event of that type, and
// reports whether it wrote one.
func (s *Service) EmitOnce(ctx context.Context, tx *gorm.DB, ev RentalEvent) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	if err := ev.check(); err != nil {
		return false, err
	}
	rentalID := strconv.FormatInt(ev.Payload.RentalRef(), 10)
	exists, err := s.repo.ExistsTx(tx, ev.Type, enums.AggregateRental, rentalID)
	if err != nil || exists {
		return false, err
	}
	if err := s.Emit(ctx, tx, ev); err != nil {
		return false, err
	}
	return true, nil
}
