package patient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/medinexus/hms/internal/platform/db"
	"github.com/medinexus/hms/migrations"
)

// These tests need a disposable Postgres; set TEST_DATABASE_URL to run them.
func newPGRepo(t *testing.T) (Repository, string) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	tenantID := fmt.Sprintf("test-%d", time.Now().UnixNano())
	if err := db.CreateTenantSchema(ctx, pool, tenantID, migrations.FS); err != nil {
		t.Fatalf("create tenant schema: %v", err)
	}
	schema, _ := db.SchemaName(tenantID)
	t.Cleanup(func() {
		pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
	})
	return NewPGRepo(pool), tenantID
}

func TestPGRepo_CreateGetList(t *testing.T) {
	repo, tenantID := newPGRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Doe", "Smith", "Brown"} {
		p := &Patient{
			ID: fmt.Sprintf("%s-P-%d", tenantID, i), TenantID: tenantID,
			FirstName: "Pat", LastName: name, DOB: "1980-01-01", Gender: GenderMale,
			Type: TypeOPD, Status: StatusActive, AdmissionDate: "2024-01-01",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 0 {
			p.Type = TypeIPD
			p.AssignedDoctorID = "u2"
		}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := repo.GetByID(ctx, tenantID, tenantID+"-P-0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastName != "Doe" || got.AssignedDoctorID != "u2" || got.DOB != "1980-01-01" {
		t.Errorf("unexpected patient %+v", got)
	}

	items, total, err := repo.List(ctx, tenantID, Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || items[0].LastName != "Brown" {
		t.Errorf("expected newest first, got total=%d first=%s", total, items[0].LastName)
	}

	items, total, _ = repo.List(ctx, tenantID, Filter{Query: "SMI", Type: TypeOPD}, 10, 0)
	if total != 1 || items[0].LastName != "Smith" {
		t.Errorf("expected Smith, got %v", items)
	}

	if _, err := repo.GetByID(ctx, tenantID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	dup := &Patient{ID: tenantID + "-P-1", TenantID: tenantID, FirstName: "X", LastName: "Y",
		DOB: "1980-01-01", Gender: GenderMale, Type: TypeOPD, Status: StatusActive, AdmissionDate: "2024-01-01"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestFilterClause(t *testing.T) {
	where, args := filterClause("tenant-123", Filter{Query: "50%_off", Type: TypeIPD, Status: StatusActive})
	want := "tenant_id = $1 AND patient_type = $2 AND status = $3 AND (first_name ILIKE $4 OR last_name ILIKE $4 OR id ILIKE $4)"
	if where != want {
		t.Errorf("unexpected where:\n got %s\nwant %s", where, want)
	}
	if len(args) != 4 || args[3] != `%50\%\_off%` {
		t.Errorf("unexpected args %v", args)
	}
}
