package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/api/responses"
	"github.com/sabunku/storefront-backend/api/validators"
	productsvc "github.com/sabunku/storefront-backend/internal/products"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/pagination"
)

const maxSearchLen = 100

// ListProducts serves the catalog with variants, filtered by category and
// name search.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		input := productsvc.ListProductsInput{
			Filters: productsvc.ProductListFilters{
				Category: validators.SanitizeString(query.Get("category"), maxSearchLen),
				Query:    validators.SanitizeString(query.Get("q"), maxSearchLen),
			},
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(query.Get("cursor")),
			},
		}

		result, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type productRequest struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Category      string           `json:"category" validate:"required,max=100"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	ImageURL      *string          `json:"image_url,omitempty" validate:"omitempty,max=2048"`
	DiscountPrice *int64           `json:"discount_price,omitempty" validate:"omitempty,gt=0"`
	Price         *int64           `json:"price,omitempty" validate:"omitempty,gte=0"`
	Stock         *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Variants      []variantRequest `json:"variants" validate:"dive"`
}

type variantRequest struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Name  string     `json:"name" validate:"required,max=100"`
	Price int64      `json:"price" validate:"gte=0"`
	Stock int        `json:"stock" validate:"gte=0"`
}

func (p productRequest) toInput() productsvc.ProductInput {
	variants := make([]productsvc.VariantInput, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, productsvc.VariantInput{
			ID:    v.ID,
			Name:  v.Name,
			Price: v.Price,
			Stock: v.Stock,
		})
	}
	return productsvc.ProductInput{
		Name:          p.Name,
		Category:      p.Category,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		DiscountPrice: p.DiscountPrice,
		Price:         p.Price,
		Stock:         p.Stock,
		Variants:      variants,
	}
}

// AdminCreateProduct creates a product and its variants.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminUpdateProduct replaces a product and syncs its variants.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), productID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAck(w)
	}
}
