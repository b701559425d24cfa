package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/domain/staff"
)

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestLogin(t *testing.T) {
	h := NewSessionHandler(testConfig(), staff.NewDemoRoster(), nil, nil, zerolog.Nop())
	fixed := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	rec := httptest.NewRecorder()
	if err := h.Login(echo.New().NewContext(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"user_id":"u4"}`), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TokenType != "Bearer" || resp.User.Role != access.RoleReceptionist {
		t.Errorf("unexpected response %+v", resp)
	}
	if !resp.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("unexpected expiry %v", resp.ExpiresAt)
	}
}

func TestLogin_Errors(t *testing.T) {
	h := NewSessionHandler(testConfig(), staff.NewDemoRoster(), nil, nil, zerolog.Nop())
	tests := []struct {
		body string
		want int
	}{
		{`{}`, http.StatusBadRequest},
		{`{"user_id":"nobody"}`, http.StatusUnauthorized},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		err := h.Login(echo.New().NewContext(jsonRequest(http.MethodPost, "/", tt.body), httptest.NewRecorder()))
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != tt.want {
			t.Errorf("%s: expected %d, got %v", tt.body, tt.want, err)
		}
	}
}

func TestLogout_RevokesAndNotifies(t *testing.T) {
	store := NewTokenRevocationStore(time.Hour)
	defer store.Close()
	var loggedOut string
	h := NewSessionHandler(testConfig(), staff.NewDemoRoster(), store, func(id string) { loggedOut = id }, zerolog.Nop())

	e := echo.New()
	api := e.Group("/api/v1", JWTMiddleware(testConfig(), staff.NewDemoRoster(), store))
	h.RegisterRoutes(api)

	tok, claims := issueFor(t, "u2")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if loggedOut != "u2" {
		t.Errorf("expected logout hook for u2, got %q", loggedOut)
	}
	if !store.IsRevoked(claims) {
		t.Error("expected token revoked")
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected revoked token rejected, got %d", rec.Code)
	}
}

func TestLogin_PublicThroughMiddleware(t *testing.T) {
	h := NewSessionHandler(testConfig(), staff.NewDemoRoster(), nil, nil, zerolog.Nop())
	e := echo.New()
	api := e.Group("/api/v1", JWTMiddleware(testConfig(), staff.NewDemoRoster(), nil))
	h.RegisterRoutes(api)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"user_id":"u1"}`))
	if rec.Code != http.StatusOK {
		t.Errorf("expected login reachable without token, got %d", rec.Code)
	}
}
