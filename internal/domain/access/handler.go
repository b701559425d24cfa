package access

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	policy *Policy
	items  []NavigationItem
}

func NewHandler(policy *Policy) *Handler {
	return &Handler{policy: policy, items: DefaultNavigation(policy)}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/navigation", h.GetNavigation)
	api.GET("/me", h.GetMe)
}

type meResponse struct {
	*Actor
	RoleLabel    string       `json:"role_label"`
	Capabilities []Capability `json:"capabilities"`
}

func (h *Handler) GetNavigation(c echo.Context) error {
	actor := ActorFromContext(c.Request().Context())
	if actor == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, VisibleNavigation(actor.Role, h.items))
}

func (h *Handler) GetMe(c echo.Context) error {
	actor := ActorFromContext(c.Request().Context())
	if actor == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, meResponse{
		Actor:        actor,
		RoleLabel:    actor.Role.Label(),
		Capabilities: h.policy.Capabilities(actor.Role),
	})
}
