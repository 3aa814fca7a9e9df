package claims

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrClaimNotFound = errors.New("claim not found")

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ClaimRepository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	// GetForUpdate locks the claim row for the duration of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Claim, error)
	UpdateStatus(ctx context.Context, c *Claim) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Claim, int, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Claim, int, error)
}

type ClaimPaymentRepository interface {
	Create(ctx context.Context, p *ClaimPayment) error
	ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*ClaimPayment, error)
}
