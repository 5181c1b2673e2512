package reviews

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/pkg/db/models"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/pagination"
)

const (
	MinRating        = 1
	MaxRating        = 5
	minNameLength    = 2
	maxNameLength    = 100
	maxCommentLength = 1000
)

// Service handles product reviews.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*ReviewDTO, error)
	List(ctx context.Context, productID uuid.UUID) (*ReviewList, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*ReviewDTO, error) {
	name := strings.TrimSpace(input.ReviewerName)
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Nama harus 2-100 karakter")
	}
	if input.Rating < MinRating || input.Rating > MaxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Rating harus antara 1 dan 5")
	}
	var comment *string
	if input.Comment != nil {
		trimmed := strings.TrimSpace(*input.Comment)
		if utf8.RuneCountInString(trimmed) > maxCommentLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Komentar maksimal 1000 karakter")
		}
		if trimmed != "" {
			comment = &trimmed
		}
	}

	if err := s.ensureProduct(ctx, input.ProductID); err != nil {
		return nil, err
	}

	review := &models.Review{
		ProductID:    input.ProductID,
		ReviewerName: name,
		Rating:       input.Rating,
		Comment:      comment,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert review")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "product_id", input.ProductID.String()), "review created")
	}
	dto := toDTO(*review)
	return &dto, nil
}

func (s *service) List(ctx context.Context, productID uuid.UUID) (*ReviewList, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByProduct(ctx, productID, pagination.MaxLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	count, sum, err := s.repo.Totals(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarise reviews")
	}

	out := &ReviewList{
		Reviews: make([]ReviewDTO, 0, len(rows)),
		Summary: Summary{Count: count, AverageRating: AverageRating(count, sum)},
	}
	for _, r := range rows {
		out.Reviews = append(out.Reviews, toDTO(r))
	}
	return out, nil
}

func (s *service) ensureProduct(ctx context.Context, productID uuid.UUID) error {
	exists, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	return nil
}
