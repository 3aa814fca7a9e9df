package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Procedure maps to the procedure_catalog table. DefaultFee is the standard
// charge applied when no plan-specific schedule entry exists.
type Procedure struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Code        string          `db:"code" json:"code"`
	Description string          `db:"description" json:"description"`
	DefaultFee  decimal.Decimal `db:"default_fee" json:"default_fee"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// FeeScheduleEntry maps to the fee_schedule table: a per-insurance-plan
// override of a procedure's standard price. At most one entry exists per
// (plan_identifier, procedure_code) pair.
type FeeScheduleEntry struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PlanIdentifier string          `db:"plan_identifier" json:"plan_identifier"`
	ProcedureCode  string          `db:"procedure_code" json:"procedure_code"`
	Fee            decimal.Decimal `db:"fee" json:"fee"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
