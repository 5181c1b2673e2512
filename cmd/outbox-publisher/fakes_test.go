package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/enums"
	"github.com/sabunku/storefront-backend/pkg/outbox"
	"github.com/sabunku/storefront-backend/pkg/outbox/payloads"
	"github.com/sabunku/storefront-backend/pkg/outbox/registry"
)

// pendingOrderCreated is an unpublished order.created row with a minimal
// envelope.
func pendingOrderCreated(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().Add(-time.Second),
	}
}

type memOutbox struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	retried   []uuid.UUID
	retired   []uuid.UUID
}

func (m *memOutbox) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	return m.pending[:min(limit, len(m.pending))], nil
}

func (m *memOutbox) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memOutbox) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.retried = append(m.retried, id)
	return nil
}

func (m *memOutbox) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.retired = append(m.retired, id)
	return nil
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

type noTxDB struct{}

func (noTxDB) Ping(context.Context) error { return nil }

func (noTxDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type delivery struct {
	topic string
	msg   outbox.Message
}

// scriptedBroker fails the first len(script) publishes with the scripted
// errors (nil entries succeed) and accepts everything after.
type scriptedBroker struct {
	script    []error
	delivered []delivery
}

func (b *scriptedBroker) Publish(_ context.Context, topic string, msg outbox.Message) error {
	if len(b.script) > 0 {
		err := b.script[0]
		b.script = b.script[1:]
		if err != nil {
			return err
		}
	}
	b.delivered = append(b.delivered, delivery{topic: topic, msg: msg})
	return nil
}

func (b *scriptedBroker) Ping(context.Context) error { return nil }

// staticResolver resolves every row to order.created, or fails with err.
type staticResolver struct {
	err error
}

func (r staticResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         "order.created",
		},
		Envelope: outbox.PayloadEnvelope{Version: 1, EventID: event.ID.String(), OccurredAt: time.Now()},
		Payload:  &payloads.OrderCreatedEvent{},
	}, nil
}
