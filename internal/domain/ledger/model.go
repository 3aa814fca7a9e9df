package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line statuses. Status is advisory display state; it is set explicitly by
// staff and never recomputed from payments.
const (
	LineStatusPending       = "pending"
	LineStatusPaid          = "paid"
	LineStatusPartiallyPaid = "partially-paid"
)

// Payment modes.
const (
	PaymentModeOutOfPocket = "out-of-pocket"
	PaymentModeInsurance   = "insurance"
	PaymentModeSplit       = "split"
)

// Payment method types.
const (
	MethodTypeCard  = "card"
	MethodTypeCheck = "check"
	MethodTypeCash  = "cash"
	MethodTypeOther = "other"
)

// Adjustment types. Classification metadata only; both reduce the balance
// identically.
const (
	AdjustmentTypeWriteOff   = "write-off"
	AdjustmentTypeAdjustment = "adjustment"
)

// Account maps to the accounts table. One exists per patient; BalanceDue is
// the authoritative amount owed, floored at zero.
type Account struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	PatientID  uuid.UUID       `db:"patient_id" json:"patient_id"`
	BalanceDue decimal.Decimal `db:"balance_due" json:"balance_due"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// InvoiceLine maps to the invoice_lines table: one billable charge tied to a
// service date. Immutable once created except for Status.
type InvoiceLine struct {
	ID                  uuid.UUID        `db:"id" json:"id"`
	AccountID           uuid.UUID        `db:"account_id" json:"account_id"`
	ServiceDate         time.Time        `db:"service_date" json:"service_date"`
	ProcedureCode       *string          `db:"procedure_code" json:"procedure_code,omitempty"`
	Description         string           `db:"description" json:"description"`
	Amount              decimal.Decimal  `db:"amount" json:"amount"`
	AmountWithInsurance *decimal.Decimal `db:"amount_with_insurance" json:"amount_with_insurance,omitempty"`
	AmountOutOfPocket   *decimal.Decimal `db:"amount_out_of_pocket" json:"amount_out_of_pocket,omitempty"`
	Status              string           `db:"status" json:"status"`
	AddedAt             time.Time        `db:"added_at" json:"added_at"`
}

// Payment maps to the payments table. Amount is always the sum of the out of
// pocket and insurance portions. Append-only.
type Payment struct {
	ID                  uuid.UUID        `db:"id" json:"id"`
	AccountID           uuid.UUID        `db:"account_id" json:"account_id"`
	Date                time.Time        `db:"date" json:"date"`
	Amount              decimal.Decimal  `db:"amount" json:"amount"`
	AmountOutOfPocket   *decimal.Decimal `db:"amount_out_of_pocket" json:"amount_out_of_pocket,omitempty"`
	AmountWithInsurance *decimal.Decimal `db:"amount_with_insurance" json:"amount_with_insurance,omitempty"`
	PaymentMethodID     *uuid.UUID       `db:"payment_method_id" json:"payment_method_id,omitempty"`
	Note                *string          `db:"note" json:"note,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
}

// PaymentMethod maps to the payment_methods table. The card number itself is
// never persisted, only the brand and last four digits derived at creation.
type PaymentMethod struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AccountID   uuid.UUID `db:"account_id" json:"account_id"`
	Type        string    `db:"type" json:"type"`
	LastFour    *string   `db:"last_four" json:"last_four,omitempty"`
	CardBrand   *string   `db:"card_brand" json:"card_brand,omitempty"`
	NameOnCard  *string   `db:"name_on_card" json:"name_on_card,omitempty"`
	ExpiryMonth *int      `db:"expiry_month" json:"expiry_month,omitempty"`
	ExpiryYear  *int      `db:"expiry_year" json:"expiry_year,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Adjustment maps to the adjustments table: a manual reduction of amount
// owed not backed by a payment. Append-only.
type Adjustment struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	AccountID uuid.UUID       `db:"account_id" json:"account_id"`
	Date      time.Time       `db:"date" json:"date"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Reason    string          `db:"reason" json:"reason"`
	Type      string          `db:"type" json:"type"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ServiceDateGroup is the per-date projection of invoice lines for display.
type ServiceDateGroup struct {
	ServiceDate time.Time       `json:"service_date"`
	Lines       []*InvoiceLine  `json:"lines"`
	Total       decimal.Decimal `json:"total"`
}
