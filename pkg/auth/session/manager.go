// Package session keeps admin access sessions in Redis so a logout or a
// password change can revoke a token before its exp claim runs out.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/sabunku/storefront-backend/pkg/config"
	redisclient "github.com/sabunku/storefront-backend/pkg/redis"
)

var (
	ErrBlankAccessID = errors.New("access id is required")
	errCorruptOwner  = errors.New("session owner is not a uuid")
)

type backend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is the read side the auth middleware depends on.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string, adminID uuid.UUID) (bool, error)
}

// Manager stores one key per access token jti whose value is the owning
// admin id. The key lives exactly as long as the token.
type Manager struct {
	backend backend
	ttl     time.Duration
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("session manager needs a redis client")
	}
	return newManager(client, cfg.AccessTokenTTL())
}

func newManager(b backend, ttl time.Duration) (*Manager, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	return &Manager{backend: b, ttl: ttl}, nil
}

func (m *Manager) Start(ctx context.Context, accessID string, adminID uuid.UUID) error {
	k, err := m.key(accessID)
	if err != nil {
		return err
	}
	if adminID == uuid.Nil {
		return errors.New("session owner is required")
	}
	if err := m.backend.Set(ctx, k, adminID.String(), m.ttl); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// Revoke is idempotent: revoking an unknown jti succeeds.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	k, err := m.key(accessID)
	if err != nil {
		return err
	}
	if err := m.backend.Del(ctx, k); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Owner returns the admin a live session belongs to, or uuid.Nil when the
// session has expired or was revoked.
func (m *Manager) Owner(ctx context.Context, accessID string) (uuid.UUID, error) {
	k, err := m.key(accessID)
	if err != nil {
		return uuid.Nil, err
	}
	raw, err := m.backend.Get(ctx, k)
	switch {
	case errors.Is(err, redislib.Nil):
		return uuid.Nil, nil
	case err != nil:
		return uuid.Nil, fmt.Errorf("load session: %w", err)
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", errCorruptOwner, raw)
	}
	return owner, nil
}

// HasSession reports whether accessID is live and was issued to adminID. A
// token replayed under another admin's claims fails this check.
func (m *Manager) HasSession(ctx context.Context, accessID string, adminID uuid.UUID) (bool, error) {
	owner, err := m.Owner(ctx, accessID)
	if err != nil {
		return false, err
	}
	return owner != uuid.Nil && owner == adminID, nil
}

func (m *Manager) key(accessID string) (string, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return "", ErrBlankAccessID
	}
	return m.backend.AccessSessionKey(accessID), nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}
