package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medinexus/hms/internal/domain/access"
)

// RequireCapability returns middleware that lets the request through only
// when the actor's role holds every listed capability.
func RequireCapability(policy *access.Policy, caps ...access.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := access.ActorFromContext(c.Request().Context())
			if actor == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			for _, cp := range caps {
				if !policy.Allows(actor.Role, cp) {
					return echo.NewHTTPError(http.StatusForbidden,
						fmt.Sprintf("required capability: %s", cp))
				}
			}
			return next(c)
		}
	}
}

// RequireRole returns middleware that checks the actor has one of roles.
func RequireRole(roles ...access.Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := access.ActorFromContext(c.Request().Context())
			if actor == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
