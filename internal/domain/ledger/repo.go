package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrAccountNotFound is returned for lookups of unknown accounts.
var ErrAccountNotFound = errors.New("account not found")

// TxRunner runs a function inside a transaction. Every statement issued via
// the context passed to fn joins that transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*Account, error)
	// GetForUpdate locks the account row for the duration of the enclosing
	// transaction, serializing concurrent mutations of one account.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	UpdateBalance(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type InvoiceLineRepository interface {
	Create(ctx context.Context, l *InvoiceLine) error
	GetByID(ctx context.Context, id uuid.UUID) (*InvoiceLine, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*InvoiceLine, error)
	ListUnpaid(ctx context.Context) ([]*InvoiceLine, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Payment, int, error)
}

type PaymentMethodRepository interface {
	Create(ctx context.Context, m *PaymentMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentMethod, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*PaymentMethod, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AdjustmentRepository interface {
	Create(ctx context.Context, a *Adjustment) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Adjustment, int, error)
}
