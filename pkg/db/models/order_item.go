package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem snapshots a purchased variant. Price is the unit price at
// checkout time and is never re-derived.
type OrderItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	ProductID   *uuid.UUID `gorm:"column:product_id;type:uuid"`
	VariantID   *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	ProductName string     `gorm:"column:product_name;not null;default:''"`
	VariantName string     `gorm:"column:variant_name;not null;default:''"`
	Quantity    int        `gorm:"column:quantity;not null"`
	Price       int64      `gorm:"column:price;not null"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotal returns price times quantity.
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}
