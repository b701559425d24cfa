package assistant

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/platform/auth"
)

const maxAudioBytes = 10 << 20

type Handler struct {
	manager     *Manager
	policy      *access.Policy
	sendTimeout time.Duration
}

func NewHandler(manager *Manager, policy *access.Policy, sendTimeout time.Duration) *Handler {
	if sendTimeout <= 0 {
		sendTimeout = 2 * time.Minute
	}
	return &Handler{manager: manager, policy: policy, sendTimeout: sendTimeout}
}

// RegisterRoutes mounts the assistant endpoints. sendLimit is applied to
// message submission only.
func (h *Handler) RegisterRoutes(api *echo.Group, sendLimit ...echo.MiddlewareFunc) {
	g := api.Group("/assistant", auth.RequireCapability(h.policy, access.CapAssistantUse))
	g.POST("/session", h.OpenSession)
	g.GET("/session", h.GetSession)
	g.DELETE("/session", h.CloseSession)
	g.PUT("/input", h.SetInput)
	g.POST("/messages", h.SendMessage, sendLimit...)
	g.POST("/dictation", h.Dictate)
}

type messageRequest struct {
	Text string `json:"text"`
}

type dictationResponse struct {
	View
	Notice string `json:"notice,omitempty"`
}

func (h *Handler) OpenSession(c echo.Context) error {
	actor := access.ActorFromContext(c.Request().Context())
	if actor == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	s := h.manager.Open(c.Request().Context(), actor)
	return c.JSON(http.StatusCreated, s.Snapshot())
}

func (h *Handler) GetSession(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) CloseSession(c echo.Context) error {
	actor := access.ActorFromContext(c.Request().Context())
	if actor == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	h.manager.Close(actor.ID)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetInput(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.SetInput(req.Text); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// SendMessage submits the body text, or the current draft when the body is
// empty, and responds once the reply has finished streaming.
func (h *Handler) SendMessage(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	text := req.Text
	if text == "" {
		text = s.Input()
	}

	// The exchange outlives a dropped client; only Close or a reopen stops it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.sendTimeout)
	defer cancel()
	if err := s.Send(ctx, text); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) Dictate(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	audio, err := io.ReadAll(io.LimitReader(c.Request().Body, maxAudioBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read audio")
	}
	if len(audio) > maxAudioBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio too large")
	}
	notice, err := s.Dictate(c.Request().Context(), audio)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, dictationResponse{View: s.Snapshot(), Notice: notice})
}

func (h *Handler) session(c echo.Context) (*Session, error) {
	actor := access.ActorFromContext(c.Request().Context())
	if actor == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	s, ok := h.manager.Get(actor.ID)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no assistant session")
	}
	return s, nil
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBusy), errors.Is(err, ErrSessionClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
