package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the minimal demographic record the billing ledger hangs off of.
// PlanIdentifier names the patient's insurance plan for fee-schedule lookups;
// empty means self-pay.
type Patient struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	FirstName      string     `json:"first_name" db:"first_name"`
	LastName       string     `json:"last_name" db:"last_name"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Email          *string    `json:"email,omitempty" db:"email"`
	Phone          *string    `json:"phone,omitempty" db:"phone"`
	PlanIdentifier *string    `json:"plan_identifier,omitempty" db:"plan_identifier"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
