package claims

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Claim lifecycle states. A claim is created as a draft, sent to the payer,
// and then either denied or paid out across one or more EOBs.
const (
	StatusDraft         = "draft"
	StatusSent          = "sent"
	StatusPartiallyPaid = "partially-paid"
	StatusPaid          = "paid"
	StatusDenied        = "denied"
)

// Claim is an insurance claim submitted for an account's charges. Amount is
// the billed total; the paid statuses are derived from the recorded payments.
type Claim struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	AccountID      uuid.UUID       `json:"account_id" db:"account_id"`
	Date           time.Time       `json:"date" db:"date"`
	ProcedureCodes []string        `json:"procedure_codes" db:"procedure_codes"`
	Description    string          `json:"description" db:"description"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Status         string          `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ClaimPayment is one EOB entry: the payer's adjudication of a claim. Only
// PaidAmount affects the claim's status and the account ledger; the other
// figures are informational.
type ClaimPayment struct {
	ID                    uuid.UUID        `json:"id" db:"id"`
	ClaimID               uuid.UUID        `json:"claim_id" db:"claim_id"`
	PaymentDate           time.Time        `json:"payment_date" db:"payment_date"`
	PaidAmount            decimal.Decimal  `json:"paid_amount" db:"paid_amount"`
	AllowedAmount         *decimal.Decimal `json:"allowed_amount,omitempty" db:"allowed_amount"`
	AdjustmentAmount      *decimal.Decimal `json:"adjustment_amount,omitempty" db:"adjustment_amount"`
	PatientResponsibility *decimal.Decimal `json:"patient_responsibility,omitempty" db:"patient_responsibility"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
}
