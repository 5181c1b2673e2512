package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/pagination"
)

// Repository wires together product and variant persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func orderedVariants(db *gorm.DB) *gorm.DB {
	return db.Order("product_variants.created_at ASC").Order("product_variants.id ASC")
}

// FindByID loads the product with its variants.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", orderedVariants).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns products newest first, filtered by exact category and a
// case-insensitive name match.
func (r *Repository) List(ctx context.Context, filters ProductListFilters, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Preload("Variants", orderedVariants)
	if category := strings.TrimSpace(filters.Category); category != "" {
		q = q.Where("products.category = ?", category)
	}
	if term := strings.TrimSpace(filters.Query); term != "" {
		q = q.Where("LOWER(products.name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}
	q = pagination.ApplyCursor(q, "products", cursor)

	var products []models.Product
	if err := q.Limit(limit).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Create inserts the product row only.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Variants").Create(product).Error
}

// Update writes the product's scalar columns.
func (r *Repository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select("name", "category", "price", "stock", "image_url", "description", "discount_price", "updated_at").
		Updates(product).Error
}

// Delete removes the product; variants and reviews cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListVariants returns the product's variants in creation order.
func (r *Repository) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := orderedVariants(r.db.WithContext(ctx)).
		Where("product_id = ?", productID).
		Find(&variants).Error
	return variants, err
}

func (r *Repository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

func (r *Repository) UpdateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ?", variant.ID, variant.ProductID).
		Select("name", "price", "stock", "updated_at").
		Updates(variant).Error
}

func (r *Repository) DeleteVariants(ctx context.Context, productID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("product_id = ? AND id IN ?", productID, ids).
		Delete(&models.ProductVariant{}).Error
}
