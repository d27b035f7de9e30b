package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType identifies the entity an outbox row is about. Every
// event this service records concerns a rental.
type OutboxAggregateType string

const AggregateRental OutboxAggregateType = "rental"

func (a OutboxAggregateType) IsValid() bool { return a == AggregateRental }

// OutboxEventType names a rental state change.
type OutboxEventType string

const (
	EventRentalCreated  OutboxEventType = "rental_created"
	EventRentalOverdue  OutboxEventType = "rental_overdue"
	EventRentalReturned OutboxEventType = "rental_returned"
)

// rentalLifecycle is the order a rental moves through its events; overdue
// may be skipped.
var rentalLifecycle = []OutboxEventType{
	EventRentalCreated,
	EventRentalOverdue,
	EventRentalReturned,
}

// OutboxEventTypes returns every known type in lifecycle order.
func OutboxEventTypes() []OutboxEventType { return slices.Clone(rentalLifecycle) }

func (e OutboxEventType) IsValid() bool { return slices.Contains(rentalLifecycle, e) }

// SweepMarker reports whether the row doubles as the overdue sweep's
// "already flagged" mark, and so must survive outbox retention.
func (e OutboxEventType) SweepMarker() bool { return e == EventRentalOverdue }

// ParseOutboxEventType converts a stored or configured name.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	e := OutboxEventType(value)
	if !e.IsValid() {
		return "", fmt.Errorf("invalid event type %q", value)
	}
	return e, nil
}
