package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/api/middleware"
	checkoutsvc "github.com/sabunku/storefront-backend/internal/checkout"
	"github.com/sabunku/storefront-backend/internal/orders"
	productsvc "github.com/sabunku/storefront-backend/internal/products"
	"github.com/sabunku/storefront-backend/internal/reviews"
	pkgAuth "github.com/sabunku/storefront-backend/pkg/auth"
	"github.com/sabunku/storefront-backend/pkg/db"
	"github.com/sabunku/storefront-backend/pkg/db/dbtest"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/outbox"
)

const testWhatsAppNumber = "6281234567890"

type harness struct {
	conn   *gorm.DB
	router http.Handler
}

// newHarness mounts the storefront handlers over real services backed by an
// in-memory database. Admin routes trust a pre-seeded admin identity.
func newHarness(t *testing.T) *harness {
	t.Helper()

	conn := dbtest.Open(t)
	client := db.Wrap(conn)
	logg := logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	checkout, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Tx:         client,
		Repository: checkoutsvc.NewRepository(conn),
		Outbox:     emitter,
		Logger:     logg,
	})
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn),
		Tx:         client,
		Outbox:     emitter,
		Logger:     logg,
	})
	require.NoError(t, err)
	products, err := productsvc.NewService(productsvc.NewRepository(conn), client, logg, nil)
	require.NoError(t, err)
	reviewSvc, err := reviews.NewService(reviews.NewRepository(conn), logg)
	require.NoError(t, err)

	adminID := uuid.NewString()
	asAdmin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithAdmin(r.Context(), adminID, pkgAuth.RoleAdmin, "test-session")))
		})
	}

	r := chi.NewRouter()
	r.Get("/api/v1/products", ListProducts(products, logg))
	r.Get("/api/v1/products/{id}", GetProduct(products, logg))
	r.Get("/api/v1/products/{id}/reviews", ListReviews(reviewSvc, logg))
	r.Post("/api/v1/products/{id}/reviews", CreateReview(reviewSvc, logg))
	r.Post("/api/v1/checkout", Checkout(checkout, logg))
	r.Post("/api/v1/checkout/whatsapp", CheckoutWhatsApp(checkout, testWhatsAppNumber, logg))
	r.Post("/api/save-order", LegacySaveOrder(checkout, logg))
	r.Post("/api/decrement-stock", LegacyDecrementStock(checkout, logg))
	r.Group(func(r chi.Router) {
		r.Use(asAdmin)
		r.Get("/api/v1/admin/orders", AdminListOrders(orderSvc, logg))
		r.Get("/api/v1/admin/orders/{id}", AdminGetOrder(orderSvc, logg))
		r.Patch("/api/v1/admin/orders/{id}/status", AdminUpdateOrderStatus(orderSvc, logg))
		r.Post("/api/v1/admin/orders/{id}/cancel", AdminCancelOrder(orderSvc, logg))
		r.Delete("/api/v1/admin/orders/{id}", AdminDeleteOrder(orderSvc, logg))
		r.Post("/api/cancel-order", LegacyCancelOrder(orderSvc, logg))
		r.Post("/api/delete-order", LegacyDeleteOrder(orderSvc, logg))
		r.Post("/api/v1/admin/products", AdminCreateProduct(products, logg))
		r.Put("/api/v1/admin/products/{id}", AdminUpdateProduct(products, logg))
		r.Delete("/api/v1/admin/products/{id}", AdminDeleteProduct(products, logg))
	})

	return &harness{conn: conn, router: r}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
