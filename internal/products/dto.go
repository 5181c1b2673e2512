package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/pkg/db/models"
)

// ProductDTO represents the catalog payload returned to clients.
type ProductDTO struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Category      string       `json:"category"`
	Price         int64        `json:"price"`
	Stock         int          `json:"stock"`
	ImageURL      *string      `json:"image_url"`
	Description   *string      `json:"description"`
	DiscountPrice *int64       `json:"discount_price"`
	Variants      []VariantDTO `json:"product_variants"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// VariantDTO is a purchasable variant.
type VariantDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price int64     `json:"price"`
	Stock int       `json:"stock"`
}

// NewProductDTO maps a product with preloaded variants. Stock is read from
// the variants when any exist since checkout only decrements variant stock.
func NewProductDTO(product *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:            product.ID,
		Name:          product.Name,
		Category:      product.Category,
		Price:         product.Price,
		Stock:         product.Stock,
		ImageURL:      product.ImageURL,
		Description:   product.Description,
		DiscountPrice: product.DiscountPrice,
		Variants:      make([]VariantDTO, 0, len(product.Variants)),
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
	if len(product.Variants) == 0 {
		return dto
	}
	dto.Stock = 0
	for _, v := range product.Variants {
		dto.Variants = append(dto.Variants, VariantDTO{
			ID:    v.ID,
			Name:  v.Name,
			Price: v.Price,
			Stock: v.Stock,
		})
		dto.Stock += v.Stock
	}
	return dto
}
