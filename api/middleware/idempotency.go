package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sabunku/storefront-backend/api/responses"
	"github.com/sabunku/storefront-backend/api/validators"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
	pkgredis "github.com/sabunku/storefront-backend/pkg/redis"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	maxIdempotencyKey   = 128
	adminIdempotencyTTL = 24 * time.Hour
	// an in-flight claim outlives any handler; a crashed instance frees the
	// key after this long
	inflightTTL = 2 * time.Minute
)

const (
	ReasonKeyReused  pkgerrors.Reason = "KEY_REUSED"
	ReasonInProgress pkgerrors.Reason = "REQUEST_IN_PROGRESS"
)

// idempotentRoute is a mutating route that honours Idempotency-Key.
// Checkout routes keep their record for the configured checkout TTL, admin
// routes for a day.
type idempotentRoute struct {
	method   string
	pattern  string
	prefix   bool
	checkout bool
}

func (r idempotentRoute) matches(method, pattern string) bool {
	if r.method != method {
		return false
	}
	if r.prefix {
		return strings.HasPrefix(pattern, r.pattern)
	}
	return pattern == r.pattern
}

// The header is optional: storefront and legacy clients do not send it, so
// requests without one pass through unrecorded.
var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, pattern: "/api/v1/checkout", checkout: true},
	{method: http.MethodPost, pattern: "/api/v1/checkout/whatsapp", checkout: true},
	{method: http.MethodPost, pattern: "/api/save-order", checkout: true},
	{method: http.MethodPost, pattern: "/api/decrement-stock", checkout: true},
	{method: http.MethodPost, pattern: "/api/cancel-order"},
	{method: http.MethodPost, pattern: "/api/delete-order"},
	{method: http.MethodPost, pattern: "/api/v1/admin/products"},
	{method: http.MethodPost, pattern: "/api/v1/admin/orders/", prefix: true},
	{method: http.MethodPatch, pattern: "/api/v1/admin/orders/", prefix: true},
}

func matchRoute(method, pattern string) (idempotentRoute, bool) {
	if pattern == "" {
		return idempotentRoute{}, false
	}
	for _, route := range idempotentRoutes {
		if route.matches(method, pattern) {
			return route, true
		}
	}
	return idempotentRoute{}, false
}

// storedResponse is what lives under an idempotency key. A claim without a
// status is still being handled.
type storedResponse struct {
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (s storedResponse) done() bool { return s.Status != 0 }

// Idempotency makes the mutating routes safe to retry. The first request
// with a key claims it, runs, and stores its response; later requests with
// the same key and body get that response back without reaching the
// handler. A different body, or a retry while the first is still running,
// is rejected with 409. 5xx responses release the key so the client can
// retry.
func Idempotency(store pkgredis.IdempotencyStore, checkoutTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if checkoutTTL <= 0 {
		checkoutTTL = adminIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			route, ok := matchRoute(r.Method, routePattern(r))
			if !ok || store == nil || id == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(id) > maxIdempotencyKey {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := validators.ReadBody(w, r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(idempotencyScope(r), id)

			claim, _ := json.Marshal(storedResponse{RequestHash: hash})
			won, err := store.SetNX(ctx, key, string(claim), inflightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !won {
				replayStored(w, r, store, key, hash, logg)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}

			ttl := adminIdempotencyTTL
			if route.checkout {
				ttl = checkoutTTL
			}
			record, _ := json.Marshal(storedResponse{
				RequestHash: hash,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
			})
			if err := store.Set(ctx, key, string(record), ttl); err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func replayStored(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// claim expired between SetNX and Get; treat as still running
		raw, err = "", nil
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
			return
		}
	}
	switch {
	case raw != "" && stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body").
			WithReason(ReasonKeyReused))
	case !stored.done():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still running").
			WithReason(ReasonInProgress))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// idempotencyScope keeps keys from different admins and routes apart.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{AdminIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
