package media

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
)

type objectStore interface {
	ObjectName(publicURL string) (string, bool)
	Delete(ctx context.Context, object string) error
}

// Service removes product images that the catalog no longer references.
type Service interface {
	RemoveProductImage(ctx context.Context, imageURL string) error
}

type ServiceParams struct {
	Store  objectStore
	Prefix string
	Logger *logger.Logger
}

type service struct {
	store  objectStore
	prefix string
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	prefix := strings.Trim(params.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &service{
		store:  params.Store,
		prefix: prefix,
		logg:   params.Logger,
	}, nil
}

// RemoveProductImage deletes the object behind imageURL. URLs outside the
// bucket or outside the product image prefix are left alone.
func (s *service) RemoveProductImage(ctx context.Context, imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return nil
	}
	object, ok := s.store.ObjectName(imageURL)
	if !ok || !strings.HasPrefix(object, s.prefix) {
		s.logDebug(ctx, imageURL, "product image not managed by bucket")
		return nil
	}

	if err := s.store.Delete(ctx, object); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product image").
			WithDetails(map[string]any{"object": object})
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "object", object), "product image removed")
	}
	return nil
}

func (s *service) logDebug(ctx context.Context, imageURL, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Debug(s.logg.WithField(ctx, "image_url", imageURL), msg)
}
