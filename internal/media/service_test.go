package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
)

const publicBase = "https://cdn.example.com/sabunku-images/"

type stubStore struct {
	deleted []string
	err     error
}

func (s *stubStore) ObjectName(publicURL string) (string, bool) {
	if !strings.HasPrefix(publicURL, publicBase) {
		return "", false
	}
	return strings.TrimPrefix(publicURL, publicBase), true
}

func (s *stubStore) Delete(ctx context.Context, object string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, object)
	return nil
}

func newTestService(t *testing.T, store objectStore) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Store: store, Prefix: "/product-images/"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestRemoveProductImageDeletesManagedObject(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)

	if err := svc.RemoveProductImage(context.Background(), publicBase+"product-images/sereh.png"); err != nil {
		t.Fatalf("remove returned error: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "product-images/sereh.png" {
		t.Fatalf("unexpected deletes %v", store.deleted)
	}
}

func TestRemoveProductImageSkipsForeignURLs(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)

	cases := []string{
		"",
		"   ",
		"https://images.example.org/sereh.png",
		publicBase + "banners/promo.png",
	}
	for _, url := range cases {
		if err := svc.RemoveProductImage(context.Background(), url); err != nil {
			t.Fatalf("remove(%q) returned error: %v", url, err)
		}
	}
	if len(store.deleted) != 0 {
		t.Fatalf("expected no deletes, got %v", store.deleted)
	}
}

func TestRemoveProductImageWrapsStoreFailure(t *testing.T) {
	svc := newTestService(t, &stubStore{err: errors.New("boom")})

	err := svc.RemoveProductImage(context.Background(), publicBase+"product-images/x.jpg")
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
