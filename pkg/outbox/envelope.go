package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EnvelopeVersion is written on every new row. Readers accept any version up
// to it.
const EnvelopeVersion = 1

// ActorRef is the account that caused the event. Guest bookings and the
// overdue sweep have none.
type ActorRef struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what subscribers
// receive as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects envelopes no reader can
// act on.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	switch data := bytes.TrimSpace(env.Data); {
	case env.Version < 1 || env.Version > EnvelopeVersion:
		return env, fmt.Errorf("unsupported envelope version %d", env.Version)
	case env.EventID == "":
		return env, fmt.Errorf("envelope has no event id")
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		return env, fmt.Errorf("envelope %s has no data", env.EventID)
	}
	return env, nil
}
