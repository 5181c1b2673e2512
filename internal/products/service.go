package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/pkg/db/models"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/pagination"
)

const (
	maxNameLength     = 200
	maxCategoryLength = 100
)

// Service exposes catalog reads and admin product management.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input ProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
}

// ProductInput holds the validated payload to create or replace a product.
// Price and Stock are only read when Variants is empty.
type ProductInput struct {
	Name          string
	Category      string
	Description   *string
	ImageURL      *string
	DiscountPrice *int64
	Price         *int64
	Stock         *int
	Variants      []VariantInput
}

// VariantInput describes one variant. A nil ID inserts a new variant.
type VariantInput struct {
	ID    *uuid.UUID
	Name  string
	Price int64
	Stock int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type imageRemover interface {
	RemoveProductImage(ctx context.Context, imageURL string) error
}

type service struct {
	repo   *Repository
	tx     txRunner
	logg   *logger.Logger
	images imageRemover
}

// NewService constructs a product service instance. images may be nil, in
// which case replaced or orphaned product images are kept in storage.
func NewService(repo *Repository, tx txRunner, logg *logger.Logger, images imageRemover) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg, images: images}, nil
}

func errProductNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, input.Filters, cursor, pagination.LimitWithBuffer(input.Pagination.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	page, next := pagination.Trim(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})

	result := &ProductListResult{Products: make([]ProductDTO, 0, len(page)), NextCursor: next}
	for i := range page {
		result.Products = append(result.Products, *NewProductDTO(&page[i]))
	}
	return result, nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errProductNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return NewProductDTO(product), nil
}

// CreateProduct inserts the product and its variants in one transaction.
func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	product := &models.Product{}
	applyInput(product, input)

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		for _, v := range input.Variants {
			variant := &models.ProductVariant{
				ProductID: product.ID,
				Name:      strings.TrimSpace(v.Name),
				Price:     v.Price,
				Stock:     v.Stock,
			}
			if err := txRepo.CreateVariant(ctx, variant); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert variant")
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logInfo(ctx, product.ID, "product created")
	return s.GetProduct(ctx, product.ID)
}

// UpdateProduct replaces the product fields and syncs variants: variants
// absent from the input are deleted, those with an id are updated and the
// rest are inserted.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input ProductInput) (*ProductDTO, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var previousImage *string
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errProductNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		previousImage = product.ImageURL

		existing := make(map[uuid.UUID]struct{}, len(product.Variants))
		for _, v := range product.Variants {
			existing[v.ID] = struct{}{}
		}
		keep := make(map[uuid.UUID]struct{}, len(input.Variants))
		for _, v := range input.Variants {
			if v.ID == nil {
				continue
			}
			if _, ok := existing[*v.ID]; !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product").
					WithDetails(map[string]any{"variant_id": v.ID.String()})
			}
			keep[*v.ID] = struct{}{}
		}

		stale := make([]uuid.UUID, 0, len(product.Variants))
		for _, v := range product.Variants {
			if _, ok := keep[v.ID]; !ok {
				stale = append(stale, v.ID)
			}
		}
		if err := txRepo.DeleteVariants(ctx, productID, stale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete variants")
		}

		for _, v := range input.Variants {
			variant := &models.ProductVariant{
				ProductID: productID,
				Name:      strings.TrimSpace(v.Name),
				Price:     v.Price,
				Stock:     v.Stock,
			}
			if v.ID != nil {
				variant.ID = *v.ID
				if err := txRepo.UpdateVariant(ctx, variant); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update variant")
				}
				continue
			}
			if err := txRepo.CreateVariant(ctx, variant); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert variant")
			}
		}

		applyInput(product, input)
		if err := txRepo.Update(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logInfo(ctx, productID, "product updated")
	if current := blankToNil(input.ImageURL); previousImage != nil && (current == nil || *current != *previousImage) {
		s.removeImage(ctx, productID, *previousImage)
	}
	return s.GetProduct(ctx, productID)
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	var image *string
	if s.images != nil {
		product, err := s.repo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errProductNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		image = product.ImageURL
	}

	deleted, err := s.repo.Delete(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !deleted {
		return errProductNotFound()
	}
	s.logInfo(ctx, productID, "product deleted")
	if image != nil {
		s.removeImage(ctx, productID, *image)
	}
	return nil
}

// removeImage runs after the catalog change has committed, so a storage
// failure only leaves an orphaned object behind.
func (s *service) removeImage(ctx context.Context, productID uuid.UUID, imageURL string) {
	if s.images == nil {
		return
	}
	if err := s.images.RemoveProductImage(ctx, imageURL); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "product_id", productID.String()), "failed to remove product image", err)
	}
}

// applyInput copies the input onto product. With variants present the
// product price is the first variant's price and stock their sum.
func applyInput(product *models.Product, input ProductInput) {
	product.Name = strings.TrimSpace(input.Name)
	product.Category = strings.TrimSpace(input.Category)
	product.Description = blankToNil(input.Description)
	product.ImageURL = blankToNil(input.ImageURL)
	product.DiscountPrice = input.DiscountPrice

	if len(input.Variants) > 0 {
		product.Price = input.Variants[0].Price
		product.Stock = 0
		for _, v := range input.Variants {
			product.Stock += v.Stock
		}
		return
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	product.Stock = 0
	if input.Stock != nil {
		product.Stock = *input.Stock
	}
}

func validateInput(input ProductInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required (max 200 characters)")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" || utf8.RuneCountInString(category) > maxCategoryLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required (max 100 characters)")
	}
	if input.DiscountPrice != nil && *input.DiscountPrice <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_price must be > 0")
	}

	if len(input.Variants) == 0 {
		if input.Price == nil || *input.Price <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "price must be > 0 when no variants are given")
		}
		if input.Stock != nil && *input.Stock < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock must be >= 0")
		}
		return nil
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Variants))
	for i, v := range input.Variants {
		if strings.TrimSpace(v.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variants[%d].name is required", i))
		}
		if v.Price <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variants[%d].price must be > 0", i))
		}
		if v.Stock < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variants[%d].stock must be >= 0", i))
		}
		if v.ID != nil {
			if _, dup := seen[*v.ID]; dup {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variants[%d].id is duplicated", i))
			}
			seen[*v.ID] = struct{}{}
		}
	}
	return nil
}

func blankToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *service) logInfo(ctx context.Context, productID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", productID.String()), msg)
}
