package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabunku/storefront-backend/internal/users"
	pkgAuth "github.com/sabunku/storefront-backend/pkg/auth"
	"github.com/sabunku/storefront-backend/pkg/config"
	"github.com/sabunku/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/security"
)

type stubSessions struct {
	started map[string]uuid.UUID
	revoked []string
	failing bool
}

func (s *stubSessions) Start(_ context.Context, accessID string, adminID uuid.UUID) error {
	if s.failing {
		return errors.New("redis down")
	}
	if s.started == nil {
		s.started = map[string]uuid.UUID{}
	}
	s.started[accessID] = adminID
	return nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "sabunku", ExpirationMinutes: 30}

// testNow pins the service clock near the real one so issued tokens still
// parse against the wall clock.
var testNow = time.Now().UTC().Truncate(time.Second)

func testHasher() *security.Hasher {
	return security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
}

func buildTestService(t *testing.T, sessions *stubSessions) (Service, *users.Repository) {
	t.Helper()
	repo := users.NewRepository(dbtest.Open(t))
	svc, err := NewService(ServiceParams{
		Admins:         repo,
		SessionManager: sessions,
		Hasher:         testHasher(),
		JWTConfig:      testJWT,
		Now:            func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc, repo
}

func TestBootstrapIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, repo := buildTestService(t, &stubSessions{})

	created, err := svc.Bootstrap(context.Background(), "Admin@SabunKu.id", "rahasia123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.Bootstrap(context.Background(), "admin@sabunku.id", "lain")
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := repo.FindByEmail(context.Background(), "admin@sabunku.id")
	require.NoError(t, err)
	ok, err := testHasher().Verify("rahasia123", admin.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginIssuesTokenAndSession(t *testing.T) {
	t.Parallel()
	sessions := &stubSessions{}
	svc, repo := buildTestService(t, sessions)
	_, err := svc.Bootstrap(context.Background(), "admin@sabunku.id", "rahasia123")
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " ADMIN@sabunku.id", Password: "rahasia123"})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pkgAuth.RoleAdmin, claims.Role)
	assert.Equal(t, resp.Admin.ID, claims.AdminID)
	assert.Equal(t, resp.Admin.ID, sessions.started[claims.ID])
	assert.Equal(t, testNow.Add(30*time.Minute), resp.ExpiresAt)

	admin, err := repo.FindByEmail(context.Background(), "admin@sabunku.id")
	require.NoError(t, err)
	require.NotNil(t, admin.LastLoginAt)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	svc, _ := buildTestService(t, &stubSessions{})
	_, err := svc.Bootstrap(context.Background(), "admin@sabunku.id", "rahasia123")
	require.NoError(t, err)

	cases := map[string]LoginRequest{
		"wrong password": {Email: "admin@sabunku.id", Password: "salah"},
		"unknown email":  {Email: "nobody@sabunku.id", Password: "rahasia123"},
		"blank":          {},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), req)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
			assert.Equal(t, invalidCredentialsMessage, typed.Message())
		})
	}
}

func TestLoginFailsWhenSessionStoreDown(t *testing.T) {
	t.Parallel()
	svc, _ := buildTestService(t, &stubSessions{failing: true})
	_, err := svc.Bootstrap(context.Background(), "admin@sabunku.id", "rahasia123")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "admin@sabunku.id", Password: "rahasia123"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()
	sessions := &stubSessions{}
	svc, _ := buildTestService(t, sessions)

	require.NoError(t, svc.Logout(context.Background(), "jti-1"))
	assert.Equal(t, []string{"jti-1"}, sessions.revoked)
	assert.True(t, pkgerrors.IsCode(svc.Logout(context.Background(), " "), pkgerrors.CodeUnauthorized))
}
