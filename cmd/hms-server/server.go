package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/config"
	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/domain/assistant"
	"github.com/medinexus/hms/internal/domain/dashboard"
	"github.com/medinexus/hms/internal/domain/patient"
	"github.com/medinexus/hms/internal/domain/staff"
	"github.com/medinexus/hms/internal/domain/tenant"
	"github.com/medinexus/hms/internal/platform/auth"
	"github.com/medinexus/hms/internal/platform/db"
	"github.com/medinexus/hms/internal/platform/genai"
	"github.com/medinexus/hms/internal/platform/metrics"
	"github.com/medinexus/hms/internal/platform/middleware"
	"github.com/medinexus/hms/internal/platform/speech"
	"github.com/medinexus/hms/internal/platform/websocket"
)

const version = "0.1.0"

// server is the assembled application plus everything that needs closing
// on shutdown.
type server struct {
	echo        *echo.Echo
	hub         *websocket.Hub
	assistant   *assistant.Manager
	revocations *auth.TokenRevocationStore
	metrics     *metrics.Collector
	pool        *pgxpool.Pool
	redis       *redis.Client
	logger      zerolog.Logger
}

// components that tests may replace; nil fields get the production default.
type overrides struct {
	provider    assistant.Provider
	transcriber speech.Transcriber
	pool        *pgxpool.Pool
}

func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, error) {
	return buildServer(ctx, cfg, logger, overrides{})
}

func buildServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, ov overrides) (*server, error) {
	s := &server{logger: logger, metrics: metrics.New()}

	policy := access.DefaultPolicy()
	roster := staff.NewDemoRoster()
	tenants := tenant.NewDemoDirectory()

	// Patient registry
	var repo patient.Repository
	if cfg.PatientStore == config.PatientStorePostgres {
		pool := ov.pool
		if pool == nil {
			var err error
			if pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns); err != nil {
				return nil, fmt.Errorf("connect database: %w", err)
			}
			logger.Info().Msg("connected to database")
		}
		s.pool = pool
		repo = patient.NewPGRepo(pool)
	} else {
		repo = patient.NewMemoryRepo(patient.DemoPatients()...)
	}
	patientSvc := patient.NewService(repo, roster, policy, s.metrics, logger)
	dashboardSvc := dashboard.NewService(patientSvc, tenants)

	// Assistant
	s.hub = websocket.NewHub(logger)
	s.hub.SetAuthorizer(websocket.OwnTopics)

	provider := ov.provider
	if provider == nil {
		provider = genai.NewClient(genai.Config{
			BaseURL: cfg.GenAIBaseURL,
			APIKey:  cfg.GenAIAPIKey,
			Model:   cfg.GenAIModel,
			Timeout: cfg.AssistantSendTimeout,
		}, logger)
	}
	transcriber := ov.transcriber
	if transcriber == nil {
		transcriber = speech.NewGoogleClient(speech.Config{
			BaseURL:      cfg.SpeechBaseURL,
			APIKey:       cfg.SpeechAPIKey,
			LanguageCode: cfg.SpeechLanguage,
		}, logger)
	}
	s.assistant = assistant.NewManager(assistant.Deps{
		Provider:    provider,
		Transcriber: transcriber,
		Tenants:     tenants,
		Listener:    assistant.NewPublisherListener(s.hub, logger),
		Recorder:    s.metrics,
		Logger:      logger,
	})

	sendLimit, err := s.assistantLimiter(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Auth
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		TTL:        cfg.AuthTokenTTL,
	}
	s.revocations = auth.NewTokenRevocationStore(cfg.AuthTokenTTL)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.echo = e

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(s.metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.DemoUserHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.AudioBodyLimit))
	if cfg.RequestTimeout > 0 {
		// Assistant sends stream for up to ASSISTANT_SEND_TIMEOUT under their own deadline.
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/api/v1/assistant/"))
	}

	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		e.Use(auth.DevAuthMiddleware(jwtCfg, roster, s.revocations, cfg.DevUser))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg, roster, s.revocations))
	}
	e.Use(middleware.Audit(logger))

	// Public endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(s.pool))
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	// API
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	rateLimitCfg.OnLimited = func() { s.metrics.RateLimited("api") }
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Only registry routes pin a tenant connection; assistant streams can
	// run for minutes and must not hold one.
	var registryMW []echo.MiddlewareFunc
	if s.pool != nil {
		registryMW = append(registryMW, db.TenantMiddleware(s.pool))
	}

	auth.NewSessionHandler(jwtCfg, roster, s.revocations, func(actorID string) {
		s.assistant.Close(actorID)
	}, logger).RegisterRoutes(apiV1)
	auth.RegisterRevocationRoutes(apiV1, s.revocations)

	access.NewHandler(policy).RegisterRoutes(apiV1)
	staff.NewHandler(roster).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc, policy).RegisterRoutes(apiV1, registryMW...)
	dashboard.NewHandler(dashboardSvc, policy).RegisterRoutes(apiV1, registryMW...)
	assistant.NewHandler(s.assistant, policy, cfg.AssistantSendTimeout).RegisterRoutes(apiV1, sendLimit...)

	// Live assistant transcript
	wsHandler := websocket.NewHandler(s.hub, func(actor *access.Actor) []string {
		return []string{assistant.Topic(actor.ID)}
	}, cfg.CORSOrigins, logger)
	wsHandler.RegisterRoutes(e.Group("/ws"), "/assistant", auth.RequireCapability(policy, access.CapAssistantUse))

	return s, nil
}

// assistantLimiter builds the per-actor limit on assistant messages: shared
// through Redis when REDIS_URL is set, in-process otherwise. A limit of zero
// disables it.
func (s *server) assistantLimiter(cfg *config.Config) ([]echo.MiddlewareFunc, error) {
	if cfg.AssistantMessagesPerMinute == 0 {
		return nil, nil
	}

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		s.redis = redis.NewClient(opts)
		limiter = middleware.NewRedisLimiter(s.redis, "hms:ratelimit", cfg.AssistantMessagesPerMinute, time.Minute)
		s.logger.Info().Str("addr", opts.Addr).Msg("assistant rate limit shared via redis")
	} else {
		limiter = middleware.NewMemoryLimiter(cfg.AssistantMessagesPerMinute)
	}

	return []echo.MiddlewareFunc{
		middleware.ActorRateLimit("assistant", limiter, s.logger, s.metrics.RateLimited),
	}, nil
}

// Close releases everything newServer opened. Safe on a partly built server.
func (s *server) Close() {
	if s.assistant != nil {
		s.assistant.CloseAll()
	}
	if s.hub != nil {
		s.hub.CloseAll()
	}
	if s.revocations != nil {
		s.revocations.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing redis client")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
