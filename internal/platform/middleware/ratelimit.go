package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/access"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// OnLimited runs for every rejected request, e.g. to count it.
	OnLimited func()
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (b *tokenBucket) retryAfter() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refillRate <= 0 {
		return 1
	}
	return int((1-b.tokens)/b.refillRate) + 1
}

// rateLimiterStore holds per-key token buckets.
type rateLimiterStore struct {
	buckets map[string]*tokenBucket
	mu      sync.RWMutex
	rate    float64
	burst   int
}

func newRateLimiterStore(rate float64, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   burst,
	}
}

func (s *rateLimiterStore) getBucket(key string) *tokenBucket {
	s.mu.RLock()
	bucket, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return bucket
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.buckets[key]; ok {
		return bucket
	}
	bucket = newTokenBucket(s.rate, s.burst)
	s.buckets[key] = bucket
	return bucket
}

// rateLimitKey prefers the authenticated actor and falls back to the client IP
// for public routes.
func rateLimitKey(c echo.Context) string {
	if actor := access.ActorFromContext(c.Request().Context()); actor != nil {
		return "actor:" + actor.ID
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns a rate limiting middleware backed by in-process token
// buckets.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newRateLimiterStore(cfg.RequestsPerSecond, cfg.BurstSize)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bucket := store.getBucket(rateLimitKey(c))
			if !bucket.allow() {
				if cfg.OnLimited != nil {
					cfg.OnLimited()
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(bucket.retryAfter()))
				c.Response().Header().Set("X-RateLimit-Limit", limit)
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			c.Response().Header().Set("X-RateLimit-Limit", limit)
			return next(c)
		}
	}
}

// Limiter decides whether the caller identified by key may proceed. When it
// may not, retryAfter says how long to wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// MemoryLimiter is a Limiter over in-process token buckets, used when no
// shared store is configured.
type MemoryLimiter struct {
	store *rateLimiterStore
}

// NewMemoryLimiter allows perMinute requests per key per minute with a
// burst of the same size.
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	return &MemoryLimiter{store: newRateLimiterStore(float64(perMinute)/60, perMinute)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	b := l.store.getBucket(key)
	if b.allow() {
		return true, 0, nil
	}
	return false, time.Duration(b.retryAfter()) * time.Second, nil
}

// ActorRateLimit applies limiter per authenticated actor. Requests without
// an actor pass through, and limiter errors fail open.
func ActorRateLimit(name string, limiter Limiter, logger zerolog.Logger, onLimited func(limiter string)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := access.ActorFromContext(c.Request().Context())
			if actor == nil {
				return next(c)
			}

			allowed, retryAfter, err := limiter.Allow(c.Request().Context(), name+":"+actor.ID)
			if err != nil {
				logger.Warn().Err(err).Str("limiter", name).Str("actor_id", actor.ID).Msg("rate limiter unavailable")
				return next(c)
			}
			if !allowed {
				if onLimited != nil {
					onLimited(name)
				}
				secs := int((retryAfter + time.Second - 1) / time.Second)
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
