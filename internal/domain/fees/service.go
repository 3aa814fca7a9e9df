package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	procedures ProcedureRepository
	schedule   FeeScheduleRepository
}

func NewService(procedures ProcedureRepository, schedule FeeScheduleRepository) *Service {
	return &Service{procedures: procedures, schedule: schedule}
}

// ResolveFee returns the charge amount for a procedure. Resolution order:
// a manual override wins outright; otherwise the plan's fee schedule entry;
// otherwise the catalog default; otherwise zero. Unknown codes are not an
// error — zero-fee lines are valid (e.g. a courtesy procedure). An empty
// plan identifier skips the schedule lookup.
func (s *Service) ResolveFee(ctx context.Context, procedureCode, planIdentifier string, override *decimal.Decimal) (decimal.Decimal, error) {
	if override != nil {
		return *override, nil
	}

	if planIdentifier != "" {
		entry, err := s.schedule.GetByPlanAndCode(ctx, planIdentifier, procedureCode)
		if err == nil {
			return entry.Fee, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return decimal.Zero, err
		}
	}

	proc, err := s.procedures.GetByCode(ctx, procedureCode)
	if err == nil {
		return proc.DefaultFee, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return decimal.Zero, err
	}

	return decimal.Zero, nil
}

// LookupDescription returns the catalog description for a code, or empty
// string when the code is unknown.
func (s *Service) LookupDescription(ctx context.Context, procedureCode string) (string, error) {
	proc, err := s.procedures.GetByCode(ctx, procedureCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return proc.Description, nil
}

// -- Procedure catalog admin --

func (s *Service) CreateProcedure(ctx context.Context, p *Procedure) error {
	if p.Code == "" {
		return fmt.Errorf("code is required")
	}
	if p.Description == "" {
		return fmt.Errorf("description is required")
	}
	if p.DefaultFee.IsNegative() {
		return fmt.Errorf("default_fee must not be negative")
	}
	return s.procedures.Create(ctx, p)
}

func (s *Service) GetProcedure(ctx context.Context, code string) (*Procedure, error) {
	return s.procedures.GetByCode(ctx, code)
}

func (s *Service) UpdateProcedure(ctx context.Context, p *Procedure) error {
	if p.DefaultFee.IsNegative() {
		return fmt.Errorf("default_fee must not be negative")
	}
	return s.procedures.Update(ctx, p)
}

func (s *Service) DeleteProcedure(ctx context.Context, id uuid.UUID) error {
	return s.procedures.Delete(ctx, id)
}

func (s *Service) ListProcedures(ctx context.Context, limit, offset int) ([]*Procedure, int, error) {
	return s.procedures.List(ctx, limit, offset)
}

// -- Fee schedule admin --

func (s *Service) AddScheduleEntry(ctx context.Context, e *FeeScheduleEntry) error {
	if e.PlanIdentifier == "" {
		return fmt.Errorf("plan_identifier is required")
	}
	if e.ProcedureCode == "" {
		return fmt.Errorf("procedure_code is required")
	}
	if e.Fee.IsNegative() {
		return fmt.Errorf("fee must not be negative")
	}
	return s.schedule.Create(ctx, e)
}

func (s *Service) DeleteScheduleEntry(ctx context.Context, id uuid.UUID) error {
	return s.schedule.Delete(ctx, id)
}

func (s *Service) ListScheduleEntries(ctx context.Context, planIdentifier string, limit, offset int) ([]*FeeScheduleEntry, int, error) {
	return s.schedule.ListByPlan(ctx, planIdentifier, limit, offset)
}
