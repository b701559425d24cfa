package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medinexus/hms/internal/domain/access"
)

type revokeUserRequest struct {
	UserID string `json:"user_id"`
}

type revokeUserResponse struct {
	UserID       string    `json:"user_id"`
	RevokedCount int       `json:"revoked_count"`
	Cutoff       time.Time `json:"cutoff"`
}

type revocationListResponse struct {
	Count   int              `json:"count"`
	Entries []RevocationInfo `json:"entries"`
}

// RegisterRevocationRoutes mounts token revocation management for
// administrators.
func RegisterRevocationRoutes(g *echo.Group, store *TokenRevocationStore) {
	admin := g.Group("/auth", RequireRole(access.RoleSuperAdmin, access.RoleHospitalAdmin))

	admin.POST("/revoke-user", handleRevokeUser(store))
	admin.GET("/revocations", handleListRevocations(store))
}

// handleRevokeUser signs a user out everywhere.
func handleRevokeUser(store *TokenRevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokeUserRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.UserID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
		}

		now := time.Now().UTC()
		count := store.RevokeAllForUser(req.UserID, now)
		return c.JSON(http.StatusOK, revokeUserResponse{UserID: req.UserID, RevokedCount: count, Cutoff: now})
	}
}

func handleListRevocations(store *TokenRevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		entries := store.Entries()
		return c.JSON(http.StatusOK, revocationListResponse{
			Count:   len(entries),
			Entries: entries,
		})
	}
}
