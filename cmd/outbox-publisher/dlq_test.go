package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/enums"
)

type fakeDeadLetters struct {
	rows      []models.OutboxDLQ
	requeued  []uuid.UUID
	listLimit int
}

func (f *fakeDeadLetters) List(_ context.Context, limit int) ([]models.OutboxDLQ, error) {
	f.listLimit = limit
	return f.rows, nil
}

func (f *fakeDeadLetters) Requeue(_ context.Context, id uuid.UUID) error {
	f.requeued = append(f.requeued, id)
	return nil
}

func TestRunDLQCommandLists(t *testing.T) {
	msg := "topic not found"
	eventID := uuid.New()
	dlq := &fakeDeadLetters{rows: []models.OutboxDLQ{{
		EventID:      eventID,
		EventType:    enums.EventOrderCreated,
		AggregateID:  uuid.New(),
		ErrorReason:  enums.OutboxDLQReasonNonRetryable,
		ErrorMessage: &msg,
		AttemptCount: 1,
		FailedAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}}}

	var out bytes.Buffer
	if err := runDLQCommand(context.Background(), dlq, 5, "", &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if dlq.listLimit != 5 {
		t.Fatalf("expected limit 5, got %d", dlq.listLimit)
	}
	text := out.String()
	for _, want := range []string{eventID.String(), "non_retryable", "2026-03-01T08:00:00Z", msg} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunDLQCommandRequeues(t *testing.T) {
	dlq := &fakeDeadLetters{}
	id := uuid.New()

	var out bytes.Buffer
	if err := runDLQCommand(context.Background(), dlq, 0, id.String(), &out); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(dlq.requeued) != 1 || dlq.requeued[0] != id {
		t.Fatalf("unexpected requeues %v", dlq.requeued)
	}
	if err := runDLQCommand(context.Background(), dlq, 0, "not-a-uuid", &out); err == nil {
		t.Fatal("expected error for bad id")
	}
}
