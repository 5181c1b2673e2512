package product

import (
	"github.com/sabunku/storefront-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the catalog.
type ProductListFilters struct {
	Category string `json:"category,omitempty"`
	Query    string `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate and filter products.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}

// ProductListResult is a page of products plus the next page cursor.
type ProductListResult struct {
	Products   []ProductDTO `json:"data"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
