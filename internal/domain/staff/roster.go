package staff

import (
	"context"
	"errors"
	"sync"

	"github.com/medinexus/hms/internal/domain/access"
)

var ErrNotFound = errors.New("staff member not found")

// Roster resolves actor identities.
type Roster interface {
	Get(ctx context.Context, id string) (*access.Actor, error)
	List(ctx context.Context, tenantID string) ([]*access.Actor, error)
	ListByRole(ctx context.Context, tenantID string, role access.Role) ([]*access.Actor, error)
}

// MemoryRoster is a fixed in-process roster.
type MemoryRoster struct {
	mu     sync.RWMutex
	order  []string
	actors map[string]*access.Actor
}

func NewMemoryRoster(actors ...*access.Actor) *MemoryRoster {
	r := &MemoryRoster{actors: make(map[string]*access.Actor, len(actors))}
	for _, a := range actors {
		r.Add(a)
	}
	return r
}

// Add inserts or replaces an actor.
func (r *MemoryRoster) Add(a *access.Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actors[a.ID]; !exists {
		r.order = append(r.order, a.ID)
	}
	cp := *a
	r.actors[a.ID] = &cp
}

func (r *MemoryRoster) Get(_ context.Context, id string) (*access.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRoster) List(ctx context.Context, tenantID string) ([]*access.Actor, error) {
	return r.filter(tenantID, func(*access.Actor) bool { return true }), nil
}

func (r *MemoryRoster) ListByRole(ctx context.Context, tenantID string, role access.Role) ([]*access.Actor, error) {
	return r.filter(tenantID, func(a *access.Actor) bool { return a.Role == role }), nil
}

func (r *MemoryRoster) filter(tenantID string, keep func(*access.Actor) bool) []*access.Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*access.Actor
	for _, id := range r.order {
		a := r.actors[id]
		if a.TenantID != tenantID || !keep(a) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// DoctorName renders an assigned doctor reference for list views:
// "Dr. <LastName>" when resolvable, "Unknown" for a dangling id, "-" for none.
func DoctorName(ctx context.Context, roster Roster, actorID string) string {
	if actorID == "" {
		return "-"
	}
	a, err := roster.Get(ctx, actorID)
	if err != nil {
		return "Unknown"
	}
	return "Dr. " + a.LastName
}
