package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/access"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedisLimiter(client, "hms:ratelimit", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "assistant:u2")
		if err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v %v", i+1, ok, err)
		}
	}

	ok, retry, err := l.Allow(ctx, "assistant:u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected third request rejected")
	}
	if retry <= 0 || retry > time.Minute {
		t.Errorf("expected retry within the window, got %v", retry)
	}

	if ok, _, _ := l.Allow(ctx, "assistant:u3"); !ok {
		t.Error("expected other actor unaffected")
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _, _ := l.Allow(ctx, "assistant:u2"); !ok {
		t.Error("expected window reset after expiry")
	}
}

func TestRedisLimiter_RepairsMissingExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Set("hms:ratelimit:k", "5")

	l := NewRedisLimiter(client, "hms:ratelimit", 10, time.Minute)
	if _, _, err := l.Allow(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := mr.TTL("hms:ratelimit:k"); ttl <= 0 {
		t.Errorf("expected ttl restored, got %v", ttl)
	}
}

func TestRedisLimiter_ServerDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	l := NewRedisLimiter(client, "hms:ratelimit", 1, time.Minute)
	if _, _, err := l.Allow(context.Background(), "k"); err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}

type stubLimiter struct {
	allowed bool
	retry   time.Duration
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.retry, s.err
}

func runActorLimit(t *testing.T, l Limiter, actor *access.Actor, onLimited func(string)) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/messages", nil)
	if actor != nil {
		req = req.WithContext(access.WithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	err := ActorRateLimit("assistant", l, zerolog.Nop(), onLimited)(okHandler)(echo.New().NewContext(req, rec))
	return rec, err
}

func TestActorRateLimit(t *testing.T) {
	u2 := &access.Actor{ID: "u2", Role: access.RoleDoctor}

	t.Run("allowed", func(t *testing.T) {
		l := &stubLimiter{allowed: true}
		if _, err := runActorLimit(t, l, u2, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(l.keys) != 1 || l.keys[0] != "assistant:u2" {
			t.Errorf("unexpected keys %v", l.keys)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		var counted string
		rec, err := runActorLimit(t, &stubLimiter{retry: 1500 * time.Millisecond}, u2, func(name string) { counted = name })
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %v", err)
		}
		if got, _ := strconv.Atoi(rec.Header().Get("Retry-After")); got != 2 {
			t.Errorf("expected Retry-After 2, got %q", rec.Header().Get("Retry-After"))
		}
		if counted != "assistant" {
			t.Errorf("expected rejection counted, got %q", counted)
		}
	})

	t.Run("fails open", func(t *testing.T) {
		if _, err := runActorLimit(t, &stubLimiter{err: errors.New("connection refused")}, u2, nil); err != nil {
			t.Fatalf("expected pass-through on limiter error, got %v", err)
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		l := &stubLimiter{}
		if _, err := runActorLimit(t, l, nil, nil); err != nil || len(l.keys) != 0 {
			t.Fatalf("expected anonymous request untouched, got %v %v", err, l.keys)
		}
	})
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(2)
	ctx := context.Background()
	l.Allow(ctx, "a")
	l.Allow(ctx, "a")

	ok, retry, err := l.Allow(ctx, "a")
	if err != nil || ok || retry < time.Second {
		t.Fatalf("expected rejection with retry, got %v %v %v", ok, retry, err)
	}
	if ok, _, _ := l.Allow(ctx, "b"); !ok {
		t.Error("expected separate key allowed")
	}
}
