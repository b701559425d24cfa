package patient

import (
	"context"
	"sync"
)

type memoryRepo struct {
	mu sync.RWMutex
	// byTenant holds each tenant's registry, newest first.
	byTenant map[string][]*Patient
}

func NewMemoryRepo(seed ...*Patient) Repository {
	r := &memoryRepo{byTenant: make(map[string][]*Patient)}
	for _, p := range seed {
		cp := *p
		r.byTenant[p.TenantID] = append(r.byTenant[p.TenantID], &cp)
	}
	return r
}

func (r *memoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byTenant[p.TenantID] {
		if existing.ID == p.ID {
			return ErrDuplicate
		}
	}
	cp := *p
	r.byTenant[p.TenantID] = append([]*Patient{&cp}, r.byTenant[p.TenantID]...)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, tenantID, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byTenant[tenantID] {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, tenantID string, f Filter, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Patient
	for _, p := range r.byTenant[tenantID] {
		if f.Matches(p) {
			matched = append(matched, p)
		}
	}
	total := len(matched)

	if offset >= total {
		return []*Patient{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]*Patient, 0, end-offset)
	for _, p := range matched[offset:end] {
		cp := *p
		out = append(out, &cp)
	}
	return out, total, nil
}

// DemoPatients is the City General Hospital starter registry.
func DemoPatients() []*Patient {
	return []*Patient{
		{ID: "t123-P-001", TenantID: "tenant-123", FirstName: "John", LastName: "Doe", DOB: "1985-05-15", Gender: GenderMale, Contact: "555-0101", Type: TypeIPD, AssignedDoctorID: "u2", Status: StatusActive, AdmissionDate: "2023-10-25"},
		{ID: "t123-P-002", TenantID: "tenant-123", FirstName: "Jane", LastName: "Smith", DOB: "1992-08-22", Gender: GenderFemale, Contact: "555-0102", Type: TypeOPD, AssignedDoctorID: "u2", Status: StatusActive, AdmissionDate: "2023-10-26"},
		{ID: "t123-P-003", TenantID: "tenant-123", FirstName: "Robert", LastName: "Brown", DOB: "1978-11-30", Gender: GenderMale, Contact: "555-0103", Type: TypeOPD, AssignedDoctorID: "u2", Status: StatusDischarged, AdmissionDate: "2023-10-20"},
	}
}
