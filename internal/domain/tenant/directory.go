package tenant

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("tenant not found")

type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
)

type Tenant struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Domain        string `json:"domain"`
	LicenseNumber string `json:"license_number"`
	Status        Status `json:"status"`
}

type Directory interface {
	Get(ctx context.Context, id string) (*Tenant, error)
}

type MemoryDirectory struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

func NewMemoryDirectory(tenants ...*Tenant) *MemoryDirectory {
	d := &MemoryDirectory{tenants: make(map[string]*Tenant)}
	for _, t := range tenants {
		d.Put(t)
	}
	return d
}

// NewDemoDirectory returns a directory holding City General Hospital.
func NewDemoDirectory() *MemoryDirectory {
	return NewMemoryDirectory(&Tenant{
		ID:            "tenant-123",
		Name:          "City General Hospital",
		Domain:        "citygeneral",
		LicenseNumber: "LIC-998877",
		Status:        StatusActive,
	})
}

func (d *MemoryDirectory) Put(t *Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *t
	d.tenants[t.ID] = &cp
}

func (d *MemoryDirectory) Get(_ context.Context, id string) (*Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// DisplayName returns the tenant's name, or "the hospital" when it cannot be
// resolved.
func DisplayName(ctx context.Context, dir Directory, id string) string {
	if dir == nil || id == "" {
		return "the hospital"
	}
	t, err := dir.Get(ctx, id)
	if err != nil || t.Name == "" {
		return "the hospital"
	}
	return t.Name
}
