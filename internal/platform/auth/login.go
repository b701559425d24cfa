package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/domain/staff"
)

// SessionHandler is the login stub: any roster user may sign in by ID.
type SessionHandler struct {
	cfg         JWTConfig
	roster      staff.Roster
	revocations *TokenRevocationStore
	onLogout    func(actorID string)
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSessionHandler builds the login and logout endpoints. onLogout runs
// after a successful logout and may be nil.
func NewSessionHandler(cfg JWTConfig, roster staff.Roster, revocations *TokenRevocationStore, onLogout func(actorID string), logger zerolog.Logger) *SessionHandler {
	if onLogout == nil {
		onLogout = func(string) {}
	}
	return &SessionHandler{
		cfg:         cfg,
		roster:      roster,
		revocations: revocations,
		onLogout:    onLogout,
		logger:      logger,
		now:         time.Now,
	}
}

func (h *SessionHandler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)
}

type loginRequest struct {
	UserID string `json:"user_id"`
}

type loginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	User        *access.Actor `json:"user"`
}

func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	actor, err := h.roster.Get(c.Request().Context(), req.UserID)
	if errors.Is(err, staff.ErrNotFound) {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	token, claims, err := IssueToken(h.cfg, actor, h.now())
	if err != nil {
		h.logger.Error().Err(err).Msg("issue token")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}

	h.logger.Info().
		Str("actor_id", actor.ID).
		Str("role", string(actor.Role)).
		Str("tenant_id", actor.TenantID).
		Msg("login")

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        actor,
	})
}

// Logout revokes the presented token and releases per-actor state.
func (h *SessionHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	actor := access.ActorFromContext(ctx)
	if actor == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if claims := ClaimsFromContext(ctx); claims != nil && h.revocations != nil {
		h.revocations.Revoke(claims)
	}
	h.onLogout(actor.ID)

	h.logger.Info().Str("actor_id", actor.ID).Msg("logout")
	return c.NoContent(http.StatusNoContent)
}
