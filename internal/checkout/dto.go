package checkout

import (
	"time"

	"github.com/google/uuid"
)

// ResultItem is a resolved line as shown on the receipt.
type ResultItem struct {
	Name        string `json:"name"`
	VariantName string `json:"variant_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

// Result is a committed checkout.
type Result struct {
	OrderID      uuid.UUID    `json:"order_id"`
	TotalPrice   int64        `json:"total_price"`
	Items        []ResultItem `json:"items"`
	CustomerName string       `json:"-"`
	CreatedAt    time.Time    `json:"-"`
}
