package payloads

import "strconv"

// Rental is implemented by every rental event payload. RentalRef must match
// the outbox row's aggregate id; Attributes are copied onto the Pub/Sub
// message so subscribers can filter without decoding the body.
type Rental interface {
	RentalRef() int64
	Attributes() map[string]string
}

// RentalCreatedEvent is emitted in the same transaction that books a costume.
type RentalCreatedEvent struct {
	RentalID           int64  `json:"rental_id"`
	CostumeID          int64  `json:"costume_id"`
	UserID             *int64 `json:"user_id,omitempty"`
	Guest              bool   `json:"guest"`
	StartDate          string `json:"start_date"`
	ExpectedReturnDate string `json:"expected_return_date"`
	TotalPrice         string `json:"total_price"`
}

func (e RentalCreatedEvent) RentalRef() int64 { return e.RentalID }

func (e RentalCreatedEvent) Attributes() map[string]string {
	return map[string]string{
		"costume_id": strconv.FormatInt(e.CostumeID, 10),
		"guest":      strconv.FormatBool(e.Guest),
	}
}

// RentalReturnedEvent is emitted when a costume comes back and is bookable again.
type RentalReturnedEvent struct {
	RentalID   int64  `json:"rental_id"`
	CostumeID  int64  `json:"costume_id"`
	ReturnedAt string `json:"returned_at"`
}

func (e RentalReturnedEvent) RentalRef() int64 { return e.RentalID }

func (e RentalReturnedEvent) Attributes() map[string]string {
	return map[string]string{"costume_id": strconv.FormatInt(e.CostumeID, 10)}
}

// RentalOverdueEvent is emitted once per active rental past its expected return date.
type RentalOverdueEvent struct {
	RentalID           int64  `json:"rental_id"`
	CostumeID          int64  `json:"costume_id"`
	UserID             *int64 `json:"user_id,omitempty"`
	ExpectedReturnDate string `json:"expected_return_date"`
	DaysOverdue        int    `json:"days_overdue"`
}

func (e RentalOverdueEvent) RentalRef() int64 { return e.RentalID }

func (e RentalOverdueEvent) Attributes() map[string]string {
	return map[string]string{
		"costume_id":   strconv.FormatInt(e.CostumeID, 10),
		"days_overdue": strconv.Itoa(e.DaysOverdue),
	}
}
