package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/enums"
	"github.com/sabunku/storefront-backend/pkg/outbox"
)

// ListFilters describe the inputs supported by the admin orders list.
type ListFilters struct {
	Status *enums.OrderStatus
}

// StatusInput requests a status change from an administrator.
type StatusInput struct {
	OrderID uuid.UUID
	Status  string
	Actor   *outbox.ActorRef
}

// CancelInput requests cancellation of an order.
type CancelInput struct {
	OrderID uuid.UUID
	Actor   *outbox.ActorRef
	Reason  string
}

// OrderItemDetail is an order line as shown to administrators.
type OrderItemDetail struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   *uuid.UUID `json:"product_id"`
	VariantID   *uuid.UUID `json:"variant_id"`
	ProductName string     `json:"product_name"`
	VariantName string     `json:"variant_name"`
	Quantity    int        `json:"quantity"`
	Price       int64      `json:"price"`
}

// OrderDetail is an order with its items.
type OrderDetail struct {
	ID              uuid.UUID         `json:"id"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerAddress *string           `json:"customer_address"`
	TotalPrice      int64             `json:"total_price"`
	Status          enums.OrderStatus `json:"status"`
	Items           []OrderItemDetail `json:"order_items"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDetail `json:"data"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func toDetail(order models.Order) OrderDetail {
	items := make([]OrderItemDetail, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDetail{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return OrderDetail{
		ID:              order.ID,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CustomerAddress: order.CustomerAddress,
		TotalPrice:      order.TotalPrice,
		Status:          order.Status,
		Items:           items,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}
