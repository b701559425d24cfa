package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/domain/staff"
)

type contextKey string

const claimsKey contextKey = "claims"

// DemoUserHeader selects the roster user in development mode.
const DemoUserHeader = "X-Demo-User"

type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	TTL        time.Duration
}

var ErrInvalidToken = errors.New("invalid token")

// IssueToken signs an HS256 token for actor.
func IssueToken(cfg JWTConfig, actor *access.Actor, now time.Time) (string, *Claims, error) {
	if len(cfg.SigningKey) == 0 {
		return "", nil, errors.New("auth: signing key not configured")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   actor.ID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: actor.TenantID,
		Role:     string(actor.Role),
		Name:     actor.FullName(),
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken verifies signature, expiry, issuer and audience.
func ParseToken(cfg JWTConfig, tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket handshake, so /ws/ paths also accept an access_token query
// parameter.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if strings.HasPrefix(c.Request().URL.Path, "/ws/") {
			if tok := c.QueryParam("access_token"); tok != "" {
				return tok, nil
			}
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return parts[1], nil
}

// JWTMiddleware authenticates bearer tokens and resolves the actor from the
// roster. The role and tenant come from the roster, not the token, so a
// role change takes effect on the next request.
func JWTMiddleware(cfg JWTConfig, roster staff.Roster, revocations *TokenRevocationStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}
			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}
			return authenticate(c, next, cfg, roster, revocations, tokenStr)
		}
	}
}

func authenticate(c echo.Context, next echo.HandlerFunc, cfg JWTConfig, roster staff.Roster, revocations *TokenRevocationStore, tokenStr string) error {
	claims, err := ParseToken(cfg, tokenStr)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if revocations != nil && revocations.IsRevoked(claims) {
		return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
	}

	ctx := c.Request().Context()
	actor, err := roster.Get(ctx, claims.Subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}

	ctx = context.WithValue(ctx, claimsKey, claims)
	ctx = access.WithActor(ctx, actor)
	c.SetRequest(c.Request().WithContext(ctx))
	return next(c)
}

// DevAuthMiddleware accepts requests without a token and acts as the roster
// user named by X-Demo-User, or defaultUser. A bearer token, when present,
// is still validated.
func DevAuthMiddleware(cfg JWTConfig, roster staff.Roster, revocations *TokenRevocationStore, defaultUser string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}
			if tokenStr, err := bearerToken(c); err == nil && len(cfg.SigningKey) > 0 {
				return authenticate(c, next, cfg, roster, revocations, tokenStr)
			}

			userID := c.Request().Header.Get(DemoUserHeader)
			if userID == "" {
				userID = defaultUser
			}
			ctx := c.Request().Context()
			actor, err := roster.Get(ctx, userID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown demo user "+userID)
			}
			c.SetRequest(c.Request().WithContext(access.WithActor(ctx, actor)))
			return next(c)
		}
	}
}

// ClaimsFromContext returns the verified token claims, or nil in
// development mode without a token.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}
