package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSchemaName(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{"tenant-123", "tenant_tenant_123", true},
		{"abc", "tenant_abc", true},
		{"hospital_1", "tenant_hospital_1", true},
		{"A1B2C3", "tenant_A1B2C3", true},
		{"a.b", "", false},
		{"a b", "", false},
		{"a/b", "", false},
		{"", "", false},
		{"'; DROP TABLE", "", false},
		{"tenant@1", "", false},
	}

	for _, tt := range tests {
		got, err := SchemaName(tt.input)
		if tt.valid && err != nil {
			t.Errorf("SchemaName(%q) unexpected error: %v", tt.input, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("SchemaName(%q) expected error", tt.input)
		}
		if got != tt.want {
			t.Errorf("SchemaName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTenantMiddleware_NoActorPassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	// A nil pool is never touched when there is no actor.
	h := TenantMiddleware(nil)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected next handler to be called")
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	conn := ConnFromContext(context.Background())
	if conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestConnFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if ConnFromContext(ctx) != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestTenantFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "tenant-123")
	if tid := TenantFromContext(ctx); tid != "tenant-123" {
		t.Errorf("expected tenant-123, got %s", tid)
	}
	if empty := TenantFromContext(context.Background()); empty != "" {
		t.Errorf("expected empty string, got %s", empty)
	}
}

func TestTenantFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, 12345)
	if tid := TenantFromContext(ctx); tid != "" {
		t.Errorf("expected empty string when context value is wrong type, got %q", tid)
	}
}

func TestCreateTenantSchema_InvalidIDs(t *testing.T) {
	for _, id := range []string{"tenant.with.dot", "ten ant", "drop;table", ""} {
		if err := CreateTenantSchema(context.Background(), nil, id, nil); err == nil {
			t.Errorf("expected error for invalid tenant ID %q", id)
		}
	}
}

func TestWithTenant_InvalidID(t *testing.T) {
	err := WithTenant(context.Background(), nil, "bad id", func(Querier) error {
		t.Fatal("fn must not run for an invalid tenant")
		return nil
	})
	if err == nil {
		t.Error("expected error for invalid tenant ID")
	}
}
