// Package gcs is a small Cloud Storage JSON API client for the product image
// bucket. The storefront only ever lists (for health) and deletes objects,
// so it talks HTTP directly instead of pulling in the full storage SDK.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sabunku/storefront-backend/pkg/config"
	"github.com/sabunku/storefront-backend/pkg/logger"
)

const (
	readWriteScope = "https://www.googleapis.com/auth/devstorage.read_write"
	defaultAPIBase = "https://storage.googleapis.com"
	requestTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
	maxErrorBody   = 2 << 10
)

var ErrNotInitialized = errors.New("gcs client not initialized")

// Client is bound to one bucket.
type Client struct {
	http       *http.Client
	tokens     oauth2.TokenSource
	bucket     string
	apiBase    string
	publicBase string
}

// NewClient resolves credentials in order: inline JSON, a credentials file,
// then Application Default Credentials (metadata server on GCP). It lists the
// bucket once before returning.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	tokens, err := tokenSource(ctx, gcp)
	if err != nil {
		return nil, err
	}

	c := &Client{
		http:       &http.Client{Timeout: requestTimeout},
		tokens:     oauth2.ReuseTokenSource(nil, tokens),
		bucket:     bucket,
		apiBase:    defaultAPIBase,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
	if c.publicBase == "" {
		c.publicBase = defaultAPIBase
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "gcs client initialized")
	}
	return c, nil
}

func tokenSource(ctx context.Context, gcp config.GCPConfig) (oauth2.TokenSource, error) {
	raw := []byte(gcp.CredentialsJSON)
	if len(raw) == 0 && gcp.ApplicationCredentials != "" {
		var err error
		if raw, err = os.ReadFile(gcp.ApplicationCredentials); err != nil {
			return nil, fmt.Errorf("read gcp credentials: %w", err)
		}
	}
	if len(raw) == 0 {
		ts, err := google.DefaultTokenSource(ctx, readWriteScope)
		if err != nil {
			return nil, fmt.Errorf("default gcp credentials: %w", err)
		}
		return ts, nil
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, readWriteScope)
	if err != nil {
		return nil, fmt.Errorf("parse gcp credentials: %w", err)
	}
	return creds.TokenSource, nil
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// PublicURL is the address browsers load object from.
func (c *Client) PublicURL(object string) string {
	segments := strings.Split(object, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return c.publicPrefix() + strings.Join(segments, "/")
}

// ObjectName reverses PublicURL. URLs outside this bucket, such as images
// hosted elsewhere, report false.
func (c *Client) ObjectName(publicURL string) (string, bool) {
	if c == nil {
		return "", false
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(publicURL), c.publicPrefix())
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	object, err := url.PathUnescape(rest)
	if err != nil || object == "" {
		return "", false
	}
	return object, true
}

func (c *Client) publicPrefix() string {
	return c.publicBase + "/" + c.bucket + "/"
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.objectsURL("")+"?maxResults=1")
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return apiError("list objects", resp)
	}
	return nil
}

// Delete removes object. Deleting an object that is already gone succeeds.
func (c *Client) Delete(ctx context.Context, object string) error {
	if err := c.ready(); err != nil {
		return err
	}
	object = strings.TrimLeft(object, "/")
	if object == "" {
		return errors.New("object name is required")
	}
	resp, err := c.do(ctx, http.MethodDelete, c.objectsURL(object))
	if err != nil {
		return err
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return apiError("delete "+object, resp)
}

func (c *Client) objectsURL(object string) string {
	u := c.apiBase + "/storage/v1/b/" + url.PathEscape(c.bucket) + "/o"
	if object != "" {
		u += "/" + url.PathEscape(object)
	}
	return u
}

// ready reports ErrNotInitialized for a nil Client or one built without a
// token source.
func (c *Client) ready() error {
	if c == nil || c.tokens == nil {
		return ErrNotInitialized
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, target string) (*http.Response, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("gcs token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("gcs %s: %s: %s", op, resp.Status, msg)
	}
	return fmt.Errorf("gcs %s: %s", op, resp.Status)
}
