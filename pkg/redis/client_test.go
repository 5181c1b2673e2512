package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sabunku/storefront-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for i, wantAllowed := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "checkout:ip:10.0.0.1", 2, 90*time.Second)
		if err != nil {
			t.Fatalf("hit %d: unexpected error: %v", i, err)
		}
		if allowed != wantAllowed || count != int64(i+1) {
			t.Fatalf("hit %d: allowed=%v count=%d", i, allowed, count)
		}
	}

	key := "sabunku:rate_limit:checkout:ip:10.0.0.1"
	if got := mock.ttls[key]; got != 90*time.Second {
		t.Fatalf("expected window ttl on first hit, got %v", got)
	}
	if mock.ttlWrites[key] != 1 {
		t.Fatalf("window should start once, started %d times", mock.ttlWrites[key])
	}
}

func TestFixedWindowAllowRejectsBadWindow(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	if _, _, err := client.FixedWindowAllow(context.Background(), "login", 5, 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestFixedWindowAllowSurfacesStoreErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.evalErr = errors.New("connection reset")
	client := &Client{store: mock}

	_, _, err := client.FixedWindowAllow(context.Background(), "login", 5, time.Minute)
	if err == nil || !errors.Is(err, mock.evalErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestReleaseLockChecksOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	lockKey := client.LockKey("cron-worker")

	ok, err := client.SetNX(ctx, lockKey, "owner-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first setnx to win, ok=%v err=%v", ok, err)
	}
	if ok, _ := client.SetNX(ctx, lockKey, "owner-2", time.Minute); ok {
		t.Fatal("second setnx must lose")
	}

	released, err := client.ReleaseLock(ctx, lockKey, "owner-2")
	if err != nil || released {
		t.Fatalf("foreign owner must not release, released=%v err=%v", released, err)
	}
	if owner, _ := client.Get(ctx, lockKey); owner != "owner-1" {
		t.Fatalf("lock owner changed to %q", owner)
	}

	released, err = client.ReleaseLock(ctx, lockKey, "owner-1")
	if err != nil || !released {
		t.Fatalf("owner must release, released=%v err=%v", released, err)
	}
	if _, err := client.Get(ctx, lockKey); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected lock key gone, got %v", err)
	}
}

func TestKeysAreNamespaced(t *testing.T) {
	client := &Client{}
	cases := []struct{ got, want string }{
		{client.IdempotencyKey("checkout", "abc"), "sabunku:idempotency:checkout:abc"},
		{client.IdempotencyKey("", " abc "), "sabunku:idempotency:abc"},
		{client.RateLimitKey("checkout:ip:1.2.3.4"), "sabunku:rate_limit:checkout:ip:1.2.3.4"},
		{client.LockKey("cron-worker"), "sabunku:lock:cron-worker"},
		{client.AccessSessionKey("3f6c2c1e-jti"), "sabunku:session:access:3f6c2c1e-jti"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("got %s, want %s", tc.got, tc.want)
		}
	}
}

func TestNilClientReportsNotInitialized(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/0", DB: 3, PoolSize: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "secret" || opts.DB != 3 || opts.PoolSize != 20 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 1, DialTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 1 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

type mockCmdable struct {
	data      map[string]string
	counters  map[string]int64
	ttls      map[string]time.Duration
	ttlWrites map[string]int
	evalErr   error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:      map[string]string{},
		counters:  map[string]int64{},
		ttls:      map[string]time.Duration{},
		ttlWrites: map[string]int{},
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			n++
		}
		delete(m.data, key)
	}
	return redis.NewIntResult(n, nil)
}

// Eval emulates the two scripts the client runs.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if m.evalErr != nil {
		return redis.NewCmdResult(nil, m.evalErr)
	}
	switch script {
	case fixedWindowScript:
		m.counters[keys[0]]++
		if m.counters[keys[0]] == 1 {
			m.ttls[keys[0]] = time.Duration(args[0].(int64)) * time.Millisecond
			m.ttlWrites[keys[0]]++
		}
		return redis.NewCmdResult(m.counters[keys[0]], nil)
	case releaseScript:
		if v, ok := m.data[keys[0]]; ok && v == args[0] {
			delete(m.data, keys[0])
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	default:
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
}
