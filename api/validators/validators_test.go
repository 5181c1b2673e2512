package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
)

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","password":"longenough","role":"admin"}`))
	var body loginBody
	err := DecodeJSONBody(r, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","password":"short"}`))
	var body loginBody
	err := DecodeJSONBody(r, &body)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["email"] != "must be a valid email" || details["password"] != "must have at least 8 characters" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var body loginBody
	err := DecodeJSONBody(r, &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body is required" {
		t.Fatalf("expected body required error, got %v", err)
	}
}

type cartBody struct {
	Items []cartLine `json:"items" validate:"required,min=1,dive"`
}

type cartLine struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

func TestValidateStructReportsNestedPaths(t *testing.T) {
	err := ValidateStruct(&cartBody{Items: []cartLine{{Quantity: 1}, {Quantity: 0}}})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details := typed.Details().(map[string]string)
	if details["items[1].quantity"] != "must be at least 1" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","password":"longenough"} {}`))
	var body loginBody
	if err := DecodeJSONBody(r, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"email":"a@b.co","password":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	var body loginBody
	err := DecodeJSONBody(r, &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestReadBodyRestoresBodyForDecode(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","password":"longenough"}`))
	raw, err := ReadBody(httptest.NewRecorder(), r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(raw), "a@b.co") {
		t.Fatalf("unexpected bytes %s", raw)
	}
	var body loginBody
	if err := DecodeJSONBody(r, &body); err != nil || body.Email != "a@b.co" {
		t.Fatalf("decode after read: %+v %v", body, err)
	}
}

func TestReadBodyStopsAtLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 3*MaxBodyBytes)))
	raw, err := ReadBody(httptest.NewRecorder(), r)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("expected size error, got %v", err)
	}
	if raw != nil {
		t.Fatalf("expected no bytes, got %d", len(raw))
	}
}

func TestDecodeJSONBodyNamesMistypedField(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":42,"password":"longenough"}`))
	var body loginBody
	typed := pkgerrors.As(DecodeJSONBody(r, &body))
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if details := typed.Details().(map[string]string); details["email"] != "must be a string" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(r, "limit", 25, 1, 100); err == nil {
		t.Fatalf("expected range error")
	}
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	if v, err := ParseQueryInt(r, "limit", 25, 1, 100); err != nil || v != 25 {
		t.Fatalf("expected default 25, got %d %v", v, err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "not-a-uuid")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	if _, err := ParseUUIDParam(r, "id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeStringCountsRunes(t *testing.T) {
	if got := SanitizeString("  sabun sereh  ", 5); got != "sabun" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("ééééé", 3); got != "ééé" {
		t.Fatalf("unexpected %q", got)
	}
}
