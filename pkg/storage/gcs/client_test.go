package gcs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &Client{
		http:       server.Client(),
		tokens:     oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token-1"}),
		bucket:     "sabunku-images",
		apiBase:    server.URL,
		publicBase: "https://cdn.example.com",
	}
}

func TestDeleteSendsAuthorizedObjectRequest(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotAuth = r.Method, r.URL.EscapedPath(), r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.Delete(context.Background(), "/product-images/a b.png"); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("unexpected method %s", gotMethod)
	}
	if gotPath != "/storage/v1/b/sabunku-images/o/product-images%2Fa%20b.png" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestDeleteStatusHandling(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status  int
		body    string
		wantErr string
	}{
		{status: http.StatusOK},
		{status: http.StatusNotFound},
		{status: http.StatusForbidden, body: "no access", wantErr: "no access"},
		{status: http.StatusInternalServerError, wantErr: "500"},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		err := client.Delete(context.Background(), "x.png")
		switch {
		case tc.wantErr == "" && err != nil:
			t.Errorf("status %d: unexpected error %v", tc.status, err)
		case tc.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tc.wantErr)):
			t.Errorf("status %d: expected error containing %q, got %v", tc.status, tc.wantErr, err)
		}
	}
}

func TestDeleteRequiresObjectName(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
	if err := client.Delete(context.Background(), "/"); err == nil {
		t.Fatal("expected error for empty object name")
	}
	if calls.Load() != 0 {
		t.Fatal("no request should be sent")
	}
}

func TestNilClientIsNotInitialized(t *testing.T) {
	t.Parallel()

	var client *Client
	if err := client.Delete(context.Background(), "x.png"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := client.Ping(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from ping, got %v", err)
	}
	if client.Bucket() != "" {
		t.Fatal("nil client has no bucket")
	}

	bare := &Client{bucket: "sabunku-images"}
	if err := bare.Delete(context.Background(), "x.png"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("client without tokens: expected ErrNotInitialized, got %v", err)
	}
	if err := bare.Ping(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("client without tokens: expected ErrNotInitialized from ping, got %v", err)
	}
}

func TestObjectNameReversesPublicURL(t *testing.T) {
	t.Parallel()

	client := &Client{bucket: "sabunku-images", publicBase: "https://cdn.example.com"}
	cases := []struct {
		url    string
		object string
		ok     bool
	}{
		{client.PublicURL("product-images/a b.png"), "product-images/a b.png", true},
		{"https://cdn.example.com/sabunku-images/x.jpg?v=2", "x.jpg", true},
		{"https://cdn.example.com/other-bucket/x.jpg", "", false},
		{"https://images.example.org/x.jpg", "", false},
		{"https://cdn.example.com/sabunku-images/", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		object, ok := client.ObjectName(tc.url)
		if object != tc.object || ok != tc.ok {
			t.Errorf("ObjectName(%q) = %q, %v; want %q, %v", tc.url, object, ok, tc.object, tc.ok)
		}
	}
}

func TestPingListsBucket(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/b/sabunku-images/o" || r.URL.Query().Get("maxResults") != "1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping returned error: %v", err)
	}
}
