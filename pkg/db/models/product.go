package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog entry. Once variants exist, Price mirrors the first
// variant and Stock the sum of variant stock.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string           `gorm:"column:name;not null"`
	Category      string           `gorm:"column:category;not null"`
	Price         int64            `gorm:"column:price;not null"`
	Stock         int              `gorm:"column:stock;not null;default:0"`
	ImageURL      *string          `gorm:"column:image_url"`
	Description   *string          `gorm:"column:description"`
	DiscountPrice *int64           `gorm:"column:discount_price"`
	Variants      []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
