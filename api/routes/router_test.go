package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/internal/orders"
	pkgAuth "github.com/sabunku/storefront-backend/pkg/auth"
	"github.com/sabunku/storefront-backend/pkg/config"
	"github.com/sabunku/storefront-backend/pkg/enums"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/metrics"
	"github.com/sabunku/storefront-backend/pkg/pagination"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubSessionChecker struct {
	ok bool
}

func (s stubSessionChecker) HasSession(context.Context, string, uuid.UUID) (bool, error) {
	return s.ok, nil
}

type stubOrders struct {
	orders.Service
}

func (stubOrders) List(context.Context, orders.ListFilters, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.OrderDetail{}}, nil
}

func (stubOrders) StatusCounts(context.Context) (map[enums.OrderStatus]int64, error) {
	return map[enums.OrderStatus]int64{enums.OrderStatusPending: 0}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "sabunku", ExpirationMinutes: 60},
	}
}

func testDeps(db stubPinger, sessions stubSessionChecker) Dependencies {
	registry := metrics.NewRegistry()
	return Dependencies{
		Config:         testConfig(),
		Logger:         logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard}),
		DB:             db,
		Sessions:       sessions,
		Orders:         stubOrders{},
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		MetricsHandler: metrics.Handler(registry),
	}
}

func adminToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		AdminID: uuid.New(),
		Email:   "admin@sabunku.id",
		Role:    pkgAuth.RoleAdmin,
		JTI:     uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(handler http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthLive(t *testing.T) {
	router := NewRouter(testDeps(stubPinger{}, stubSessionChecker{ok: true}))

	resp := serve(router, http.MethodGet, "/health/live", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-SabunKu-Env"); got != "test" {
		t.Fatalf("expected env header test got %q", got)
	}
}

func TestHealthReadyReportsDatabaseFailure(t *testing.T) {
	router := NewRouter(testDeps(stubPinger{}, stubSessionChecker{ok: true}))
	if resp := serve(router, http.MethodGet, "/health/ready", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	router = NewRouter(testDeps(stubPinger{err: errors.New("down")}, stubSessionChecker{ok: true}))
	if resp := serve(router, http.MethodGet, "/health/ready", ""); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router := NewRouter(testDeps(stubPinger{}, stubSessionChecker{ok: true}))

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/admin/orders"},
		{http.MethodPost, "/api/v1/admin/products"},
		{http.MethodPost, "/api/v1/admin/logout"},
		{http.MethodPost, "/api/cancel-order"},
		{http.MethodPost, "/api/delete-order"},
	} {
		if resp := serve(router, tc.method, tc.path, ""); resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestAdminRoutesAcceptLiveSession(t *testing.T) {
	deps := testDeps(stubPinger{}, stubSessionChecker{ok: true})
	router := NewRouter(deps)

	resp := serve(router, http.MethodGet, "/api/v1/admin/orders", adminToken(t, deps.Config))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"counts"`) {
		t.Fatalf("expected status counts in body: %s", resp.Body.String())
	}
}

func TestAdminRoutesRejectRevokedSession(t *testing.T) {
	deps := testDeps(stubPinger{}, stubSessionChecker{ok: false})
	router := NewRouter(deps)

	resp := serve(router, http.MethodGet, "/api/v1/admin/orders", adminToken(t, deps.Config))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	router := NewRouter(testDeps(stubPinger{}, stubSessionChecker{ok: true}))
	serve(router, http.MethodGet, "/health/live", "")

	resp := serve(router, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "/health/live") {
		t.Fatalf("expected route label in metrics output")
	}
}
