package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/pkg/enums"
)

// OrderLine is a purchased variant as captured at checkout.
type OrderLine struct {
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	ProductName string     `json:"product_name"`
	VariantName string     `json:"variant_name"`
	Quantity    int        `json:"quantity"`
	Price       int64      `json:"price"`
}

// OrderCreatedEvent is emitted when checkout persists a new order.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID             `json:"order_id"`
	Channel      enums.CheckoutChannel `json:"channel"`
	CustomerName string                `json:"customer_name"`
	TotalPrice   int64                 `json:"total_price"`
	Items        []OrderLine           `json:"items"`
}

// OrderStatusChangedEvent records a forward status step.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// RestoredStock is a variant whose stock was returned on cancellation.
type RestoredStock struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// OrderCancelledEvent is emitted after stock has been restored.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Restored       []RestoredStock   `json:"restored"`
	Reason         string            `json:"reason,omitempty"`
	CancelledAt    time.Time         `json:"cancelled_at"`
}

// OrderDeletedEvent is emitted when a cancelled order is hard deleted.
type OrderDeletedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// OrderRef returns the order an event belongs to. The publisher checks it
// against the outbox row's aggregate id.
func (e OrderCreatedEvent) OrderRef() uuid.UUID       { return e.OrderID }
func (e OrderStatusChangedEvent) OrderRef() uuid.UUID { return e.OrderID }
func (e OrderCancelledEvent) OrderRef() uuid.UUID     { return e.OrderID }
func (e OrderDeletedEvent) OrderRef() uuid.UUID       { return e.OrderID }
