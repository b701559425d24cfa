package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

var hardeningHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "0",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Referrer-Policy":           "no-referrer",
	"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
	"Cache-Control":             "no-store",
}

// Patient rows, assistant transcripts and the rejections in front of them
// all carry the headers, including errors rendered by echo's error handler.
func TestSecurityHeaders_OnServiceResponses(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.Use(BodyLimit("64", "1K"))

	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id"), "first_name": "John"})
	})
	e.GET("/api/v1/assistant/session", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"state": "idle", "turns": []string{}})
	})
	e.GET("/api/v1/patients/export", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "required capability: patient:export")
	})
	e.POST("/api/v1/patients", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"patient record", http.MethodGet, "/api/v1/patients/tenant-123-P-1", "", http.StatusOK},
		{"assistant transcript", http.MethodGet, "/api/v1/assistant/session", "", http.StatusOK},
		{"denied export", http.MethodGet, "/api/v1/patients/export", "", http.StatusForbidden},
		{"oversized registration", http.MethodPost, "/api/v1/patients", strings.Repeat("x", 65), http.StatusRequestEntityTooLarge},
		{"unknown route", http.MethodGet, "/api/v1/wards", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			for header, want := range hardeningHeaders {
				if got := rec.Header().Get(header); got != want {
					t.Errorf("header %s: got %q, want %q", header, got, want)
				}
			}
		})
	}
}

func TestSecurityHeaders_ExportKeepsNoStore(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients/export", nil), rec)

	// The export download sets its own disposition; the cache policy stays.
	err := SecurityHeaders()(func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="patients.xlsx"`)
		return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte("PK"))
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get("Cache-Control") != "no-store" || rec.Header().Get(echo.HeaderContentDisposition) == "" {
		t.Errorf("unexpected headers %v", rec.Header())
	}
}
