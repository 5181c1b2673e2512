package reviews

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sabunku/storefront-backend/pkg/db/models"
)

// ReviewDTO is a review as returned to shoppers.
type ReviewDTO struct {
	ID           uuid.UUID `json:"id"`
	ProductID    uuid.UUID `json:"product_id"`
	ReviewerName string    `json:"reviewer_name"`
	Rating       int       `json:"rating"`
	Comment      *string   `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary aggregates every review of a product.
type Summary struct {
	Count         int64   `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

// ReviewList is the product reviews payload.
type ReviewList struct {
	Reviews []ReviewDTO `json:"data"`
	Summary Summary     `json:"summary"`
}

// CreateInput is a shopper's review submission.
type CreateInput struct {
	ProductID    uuid.UUID
	ReviewerName string
	Rating       int
	Comment      *string
}

func toDTO(r models.Review) ReviewDTO {
	return ReviewDTO{
		ID:           r.ID,
		ProductID:    r.ProductID,
		ReviewerName: r.ReviewerName,
		Rating:       r.Rating,
		Comment:      r.Comment,
		CreatedAt:    r.CreatedAt,
	}
}

// AverageRating divides exactly and rounds half away from zero to one decimal.
func AverageRating(count, sum int64) float64 {
	if count <= 0 {
		return 0
	}
	return decimal.NewFromInt(sum).
		DivRound(decimal.NewFromInt(count), 4).
		Round(1).
		InexactFloat64()
}
