package claims

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentpm/dentpm/internal/domain/ledger"
	"github.com/dentpm/dentpm/internal/platform/audit"
	"github.com/dentpm/dentpm/internal/platform/auth"
	"github.com/dentpm/dentpm/internal/platform/metrics"
)

// PaymentPoster posts an insurance payout to the account ledger. Satisfied by
// the ledger service; the posting joins the claim's transaction so both commit
// or neither does.
type PaymentPoster interface {
	PostInsurancePayment(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, note string) (*ledger.Payment, error)
}

type Service struct {
	claims   ClaimRepository
	payments ClaimPaymentRepository
	tx       TxRunner
	poster   PaymentPoster
	sink     audit.Sink
	metrics  *metrics.Metrics
}

func NewService(claims ClaimRepository, payments ClaimPaymentRepository, tx TxRunner, poster PaymentPoster, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{claims: claims, payments: payments, tx: tx, poster: poster, sink: sink}
}

// SetMetrics attaches optional Prometheus counters.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) audit(ctx context.Context, action string, accountID uuid.UUID, detail string) error {
	return s.sink.Record(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		ActorID:   auth.UserIDFromContext(ctx),
		Action:    action,
		AccountID: accountID,
		Detail:    detail,
	})
}

func (s *Service) transition(status string) {
	if s.metrics != nil {
		s.metrics.ClaimsTransitions.WithLabelValues(status).Inc()
	}
}

// ClaimInput describes a claim to file. When Submit is set the claim is
// created already sent instead of as a draft.
type ClaimInput struct {
	Date           time.Time       `json:"date"`
	ProcedureCodes []string        `json:"procedure_codes"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Submit         bool            `json:"submit"`
}

func (s *Service) CreateClaim(ctx context.Context, accountID uuid.UUID, in ClaimInput) (*Claim, error) {
	if in.Date.IsZero() {
		return nil, fmt.Errorf("date is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("description is required")
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}

	status := StatusDraft
	if in.Submit {
		status = StatusSent
	}
	claim := &Claim{
		AccountID:      accountID,
		Date:           in.Date,
		ProcedureCodes: in.ProcedureCodes,
		Description:    in.Description,
		Amount:         in.Amount,
		Status:         status,
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "claim.created", accountID,
		fmt.Sprintf("claim=%s status=%s amount=%s", claim.ID, status, in.Amount)); err != nil {
		return nil, err
	}
	s.transition(status)
	return claim, nil
}

func (s *Service) GetClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *Service) ListClaims(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return s.claims.ListByAccount(ctx, accountID, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Claim, int, error) {
	switch status {
	case StatusDraft, StatusSent, StatusPartiallyPaid, StatusPaid, StatusDenied:
	default:
		return nil, 0, fmt.Errorf("invalid claim status: %s", status)
	}
	return s.claims.ListByStatus(ctx, status, limit, offset)
}

// SendClaim marks a draft claim as sent to the payer. Any other starting
// state is rejected.
func (s *Service) SendClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	var claim *Claim
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.claims.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if claim.Status != StatusDraft {
			return fmt.Errorf("only draft claims can be sent, claim is %s", claim.Status)
		}
		claim.Status = StatusSent
		if err := s.claims.UpdateStatus(ctx, claim); err != nil {
			return err
		}
		return s.audit(ctx, "claim.sent", claim.AccountID, "claim="+claim.ID.String())
	})
	if err != nil {
		return nil, err
	}
	s.transition(StatusSent)
	return claim, nil
}

// MarkDenied records the payer's denial of a sent claim. A denied claim is
// terminal; claims with recorded payments cannot be denied.
func (s *Service) MarkDenied(ctx context.Context, id uuid.UUID) (*Claim, error) {
	var claim *Claim
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.claims.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if claim.Status != StatusSent {
			return fmt.Errorf("only sent claims can be denied, claim is %s", claim.Status)
		}
		claim.Status = StatusDenied
		if err := s.claims.UpdateStatus(ctx, claim); err != nil {
			return err
		}
		return s.audit(ctx, "claim.denied", claim.AccountID, "claim="+claim.ID.String())
	})
	if err != nil {
		return nil, err
	}
	s.transition(StatusDenied)
	return claim, nil
}

// ClaimPaymentInput carries one EOB's figures. Only PaidAmount is posted to
// the account ledger.
type ClaimPaymentInput struct {
	PaymentDate           *time.Time       `json:"payment_date,omitempty"`
	PaidAmount            decimal.Decimal  `json:"paid_amount"`
	AllowedAmount         *decimal.Decimal `json:"allowed_amount,omitempty"`
	AdjustmentAmount      *decimal.Decimal `json:"adjustment_amount,omitempty"`
	PatientResponsibility *decimal.Decimal `json:"patient_responsibility,omitempty"`
}

// RecordClaimPayment appends an EOB to a sent or partially paid claim, posts
// the paid amount to the account ledger, and advances the claim status: paid
// once the cumulative payout covers the billed amount, partially paid
// otherwise. The EOB, the ledger payment, and the status change commit in one
// transaction.
func (s *Service) RecordClaimPayment(ctx context.Context, claimID uuid.UUID, in ClaimPaymentInput) (*ClaimPayment, error) {
	if !in.PaidAmount.IsPositive() {
		return nil, fmt.Errorf("paid_amount must be positive")
	}

	date := time.Now().UTC()
	if in.PaymentDate != nil {
		date = *in.PaymentDate
	}
	eob := &ClaimPayment{
		ClaimID:               claimID,
		PaymentDate:           date,
		PaidAmount:            in.PaidAmount,
		AllowedAmount:         in.AllowedAmount,
		AdjustmentAmount:      in.AdjustmentAmount,
		PatientResponsibility: in.PatientResponsibility,
	}

	var newStatus string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		claim, err := s.claims.GetForUpdate(ctx, claimID)
		if err != nil {
			return err
		}
		switch claim.Status {
		case StatusSent, StatusPartiallyPaid:
		default:
			return fmt.Errorf("cannot record a payment on a %s claim", claim.Status)
		}

		if err := s.payments.Create(ctx, eob); err != nil {
			return err
		}

		prior, err := s.payments.ListByClaim(ctx, claimID)
		if err != nil {
			return err
		}
		totalPaid := decimal.Zero
		for _, p := range prior {
			totalPaid = totalPaid.Add(p.PaidAmount)
		}

		newStatus = StatusPartiallyPaid
		if totalPaid.GreaterThanOrEqual(claim.Amount) {
			newStatus = StatusPaid
		}
		claim.Status = newStatus
		if err := s.claims.UpdateStatus(ctx, claim); err != nil {
			return err
		}

		note := fmt.Sprintf("insurance payment for claim %s", claimID)
		if _, err := s.poster.PostInsurancePayment(ctx, claim.AccountID, in.PaidAmount, note); err != nil {
			return err
		}
		return s.audit(ctx, "claim.payment_recorded", claim.AccountID,
			fmt.Sprintf("claim=%s paid=%s total_paid=%s status=%s", claimID, in.PaidAmount, totalPaid, newStatus))
	})
	if err != nil {
		return nil, err
	}
	s.transition(newStatus)
	return eob, nil
}

func (s *Service) ListClaimPayments(ctx context.Context, claimID uuid.UUID) ([]*ClaimPayment, error) {
	if _, err := s.claims.GetByID(ctx, claimID); err != nil {
		return nil, err
	}
	return s.payments.ListByClaim(ctx, claimID)
}
