package patient

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("patient not found")
	ErrDuplicate = errors.New("patient id already exists")
)

// Repository stores patients per tenant. List returns newest first.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID, id string) (*Patient, error)
	List(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]*Patient, int, error)
}
