package pubsub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/maisonlocation/costume-rental-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	tests := []struct {
		name    string
		project string
		input   string
		topic   string
		sub     string
	}{
		{name: "short id", project: "acme", input: "rental-events", topic: "projects/acme/topics/rental-events", sub: "projects/acme/subscriptions/rental-events"},
		{name: "trims", project: " acme ", input: " rental-events ", topic: "projects/acme/topics/rental-events", sub: "projects/acme/subscriptions/rental-events"},
		{name: "empty", project: "acme", input: "  ", topic: "", sub: ""},
		{name: "missing project", project: "", input: "rental-events", topic: "", sub: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := topicResourceName(tc.project, tc.input); got != tc.topic {
				t.Fatalf("topic: expected %q, got %q", tc.topic, got)
			}
			if got := subscriptionResourceName(tc.project, tc.input); got != tc.sub {
				t.Fatalf("subscription: expected %q, got %q", tc.sub, got)
			}
		})
	}

	full := "projects/other/topics/rental-events"
	if got := topicResourceName("acme", full); got != full {
		t.Fatalf("expected qualified topic kept, got %q", got)
	}
}

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{RentalsTopic: "t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("x") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLookupErr(t *testing.T) {
	if err := lookupErr("topic", "rental-events", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	missing := lookupErr("topic", "rental-overdue", status.Error(codes.NotFound, "gone"))
	if missing == nil || !strings.Contains(missing.Error(), `topic "rental-overdue" does not exist`) {
		t.Fatalf("unexpected not-found error: %v", missing)
	}
	denied := status.Error(codes.PermissionDenied, "no")
	if err := lookupErr("subscription", "rentals-sub", denied); !errors.Is(err, denied) {
		t.Fatalf("expected wrapped grpc error, got %v", err)
	}
}
