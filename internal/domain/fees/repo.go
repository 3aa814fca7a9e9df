package fees

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a catalog or schedule lookup has no match.
// ResolveFee relies on it to fall through the resolution chain.
var ErrNotFound = errors.New("not found")

type ProcedureRepository interface {
	Create(ctx context.Context, p *Procedure) error
	GetByCode(ctx context.Context, code string) (*Procedure, error)
	Update(ctx context.Context, p *Procedure) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Procedure, int, error)
}

type FeeScheduleRepository interface {
	Create(ctx context.Context, e *FeeScheduleEntry) error
	GetByPlanAndCode(ctx context.Context, planIdentifier, procedureCode string) (*FeeScheduleEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPlan(ctx context.Context, planIdentifier string, limit, offset int) ([]*FeeScheduleEntry, int, error)
}
