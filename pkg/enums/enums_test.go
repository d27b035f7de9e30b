package enums

import "testing"

func TestParseOutboxEventType(t *testing.T) {
	got, err := ParseOutboxEventType("rental_created")
	if err != nil || got != EventRentalCreated {
		t.Fatalf("expected rental_created, got %q err=%v", got, err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if !EventRentalOverdue.IsValid() {
		t.Fatal("expected rental_overdue to be valid")
	}
}

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole("admin")
	if err != nil || role != UserRoleAdmin {
		t.Fatalf("expected admin, got %q err=%v", role, err)
	}
	if UserRole("owner").IsValid() {
		t.Fatal("owner is not an account role")
	}
	if OutboxAggregateType("costume").IsValid() {
		t.Fatal("only rentals have outbox events")
	}
}

func TestOnlyOverdueEventsMarkTheSweep(t *testing.T) {
	var markers []OutboxEventType
	for _, e := range OutboxEventTypes() {
		if e.SweepMarker() {
			markers = append(markers, e)
		}
	}
	if len(markers) != 1 || markers[0] != EventRentalOverdue {
		t.Fatalf("expected only rental_overdue to mark the sweep, got %v", markers)
	}
}
