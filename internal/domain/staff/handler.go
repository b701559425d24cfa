package staff

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medinexus/hms/internal/domain/access"
)

type Handler struct {
	roster Roster
}

func NewHandler(roster Roster) *Handler {
	return &Handler{roster: roster}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/staff", h.ListStaff)
}

func (h *Handler) ListStaff(c echo.Context) error {
	ctx := c.Request().Context()
	actor := access.ActorFromContext(ctx)
	if actor == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var (
		members []*access.Actor
		err     error
	)
	if q := c.QueryParam("role"); q != "" {
		role, ok := access.ParseRole(q)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown role: "+q)
		}
		members, err = h.roster.ListByRole(ctx, actor.TenantID, role)
	} else {
		members, err = h.roster.List(ctx, actor.TenantID)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if members == nil {
		members = []*access.Actor{}
	}
	return c.JSON(http.StatusOK, members)
}
