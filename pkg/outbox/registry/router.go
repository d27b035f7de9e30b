// Package registry decides where each outbox row is published and what the
// Pub/Sub message carries.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maisonlocation/costume-rental-backend/pkg/config"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox"
	"github.com/maisonlocation/costume-rental-backend/pkg/outbox/payloads"
)

// ErrUndeliverable marks rows that will never publish however often they are
// retried: unknown types, broken envelopes, payloads about another rental.
var ErrUndeliverable = errors.New("undeliverable outbox event")

func undeliverable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUndeliverable, fmt.Sprintf(format, args...))
}

// Message is a routed outbox row.
type Message struct {
	Topic string
	// OrderingKey keeps the events of one rental in commit order.
	OrderingKey string
	Attributes  map[string]string
	Data        []byte
	EventID     string
	OccurredAt  time.Time
}

type route struct {
	topic  string
	decode func(json.RawMessage) (payloads.Rental, error)
}

// Router maps rental event types to their topics. Overdue notices go to their
// own topic when one is configured.
type Router struct {
	routes map[enums.OutboxEventType]route
}

func NewRouter(cfg config.PubSubConfig) (*Router, error) {
	rentals := strings.TrimSpace(cfg.RentalsTopic)
	if rentals == "" {
		return nil, errors.New("rentals topic is required")
	}
	return &Router{routes: map[enums.OutboxEventType]route{
		enums.EventRentalCreated:  {rentals, decodeAs[payloads.RentalCreatedEvent]},
		enums.EventRentalReturned: {rentals, decodeAs[payloads.RentalReturnedEvent]},
		enums.EventRentalOverdue:  {cfg.OverdueTopicOrDefault(), decodeAs[payloads.RentalOverdueEvent]},
	}}, nil
}

func decodeAs[T payloads.Rental](raw json.RawMessage) (payloads.Rental, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Topics lists every topic the router can send to.
func (r *Router) Topics() []string {
	seen := map[string]bool{}
	var topics []string
	for _, rt := range r.routes {
		if !seen[rt.topic] {
			seen[rt.topic] = true
			topics = append(topics, rt.topic)
		}
	}
	return topics
}

// Route builds the message for row. Every error wraps ErrUndeliverable.
func (r *Router) Route(row models.OutboxEvent) (*Message, error) {
	rt, ok := r.routes[row.EventType]
	if !ok {
		return nil, undeliverable("no route for event type %q", row.EventType)
	}
	rentalID, err := row.RentalID()
	if err != nil {
		return nil, undeliverable("%v", err)
	}

	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, undeliverable("%s: %v", row.EventType, err)
	}
	payload, err := rt.decode(env.Data)
	if err != nil {
		return nil, undeliverable("decode %s: %v", row.EventType, err)
	}
	if payload.RentalRef() != rentalID {
		return nil, undeliverable("%s payload is about rental %d, row about %d", row.EventType, payload.RentalRef(), rentalID)
	}

	attrs := payload.Attributes()
	attrs["event_id"] = env.EventID
	attrs["event_type"] = string(row.EventType)
	attrs["rental_id"] = row.AggregateID
	attrs["schema_version"] = strconv.Itoa(env.Version)
	attrs["occurred_at"] = env.OccurredAt.UTC().Format(time.RFC3339Nano)

	return &Message{
		Topic:       rt.topic,
		OrderingKey: "rental:" + row.AggregateID,
		Attributes:  attrs,
		Data:        row.Payload,
		EventID:     env.EventID,
		OccurredAt:  env.OccurredAt,
	}, nil
}
