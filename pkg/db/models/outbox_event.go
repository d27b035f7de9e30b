package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
)

// OutboxEvent is a rental event waiting for, or done with, publication.
// PublishedAt stays nil until Pub/Sub acknowledges it; rows parked after too
// many attempts keep a nil PublishedAt and AttemptCount at the cap.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   string                    `gorm:"column:aggregate_id;type:text;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

// RentalID parses AggregateID for rental rows.
func (e OutboxEvent) RentalID() (int64, error) {
	if e.AggregateType != enums.AggregateRental {
		return 0, fmt.Errorf("outbox row %s is about a %s", e.ID, e.AggregateType)
	}
	id, err := strconv.ParseInt(e.AggregateID, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("outbox row %s has rental id %q", e.ID, e.AggregateID)
	}
	return id, nil
}
