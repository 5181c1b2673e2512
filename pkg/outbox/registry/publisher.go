// Package registry knows every order event the outbox carries: which topic
// it goes to and how to decode and check its payload before it leaves the
// database.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sabunku/storefront-backend/pkg/config"
	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/enums"
	"github.com/sabunku/storefront-backend/pkg/outbox"
	"github.com/sabunku/storefront-backend/pkg/outbox/payloads"
)

// maxEnvelopeVersion is the newest envelope layout this publisher decodes.
const maxEnvelopeVersion = 1

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed every check and is ready to
// send.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// Message builds the broker message for the row. Keying by order id keeps
// every event of one order on one Kafka partition, in order.
func (r *ResolvedEvent) Message(event models.OutboxEvent) outbox.Message {
	orderID := event.AggregateID.String()
	return outbox.Message{
		Key:  orderID,
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       r.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   orderID,
		},
	}
}

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func reject(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// orderScoped is implemented by every order payload.
type orderScoped interface {
	OrderRef() uuid.UUID
}

type EventRegistry struct {
	ordered []EventDescriptor
	byType  map[enums.OutboxEventType]EventDescriptor
}

func orderEvent[T any](eventType enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  enums.AggregateOrder,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry maps the four order events to their configured topics.
// Every topic must be set; several events may share one.
func NewEventRegistry(cfg config.EventsConfig) (*EventRegistry, error) {
	descriptors := []EventDescriptor{
		orderEvent[payloads.OrderCreatedEvent](enums.EventOrderCreated, cfg.OrderCreatedTopic),
		orderEvent[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, cfg.OrderStatusTopic),
		orderEvent[payloads.OrderCancelledEvent](enums.EventOrderCancelled, cfg.OrderCancelledTopic),
		orderEvent[payloads.OrderDeletedEvent](enums.EventOrderDeleted, cfg.OrderDeletedTopic),
	}

	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	var missing error
	for _, desc := range descriptors {
		if desc.Topic == "" {
			missing = multierr.Append(missing, fmt.Errorf("topic for %s is required", desc.EventType))
			continue
		}
		reg.ordered = append(reg.ordered, desc)
		reg.byType[desc.EventType] = desc
	}
	if missing != nil {
		return nil, missing
	}
	return reg, nil
}

// Topics lists the configured topics once each, in event order. Pub/Sub
// verifies these exist at startup.
func (r *EventRegistry) Topics() []string {
	seen := make(map[string]bool, len(r.ordered))
	var out []string
	for _, desc := range r.ordered {
		if !seen[desc.Topic] {
			seen[desc.Topic] = true
			out = append(out, desc.Topic)
		}
	}
	return out
}

// Resolve checks a row and decodes its payload. Every failure is a
// NonRetryableError: the row is wrong, and sending it again will not fix
// it.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return nil, reject("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, reject("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, reject("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, reject("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > maxEnvelopeVersion {
		return nil, reject("unsupported envelope version %d", envelope.Version)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, reject("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, reject("decode %s payload: %w", event.EventType, err)
	}
	if scoped, ok := payload.(orderScoped); ok && scoped.OrderRef() != event.AggregateID {
		return nil, reject("payload order %s does not match aggregate %s", scoped.OrderRef(), event.AggregateID)
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
