package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentpm/dentpm/internal/platform/audit"
	"github.com/dentpm/dentpm/internal/platform/auth"
	"github.com/dentpm/dentpm/internal/platform/metrics"
	"github.com/dentpm/dentpm/pkg/cardbrand"
)

// FeeResolver resolves a procedure's charge amount. Satisfied by the fees
// service.
type FeeResolver interface {
	ResolveFee(ctx context.Context, procedureCode, planIdentifier string, override *decimal.Decimal) (decimal.Decimal, error)
}

type Service struct {
	accounts    AccountRepository
	lines       InvoiceLineRepository
	payments    PaymentRepository
	methods     PaymentMethodRepository
	adjustments AdjustmentRepository
	tx          TxRunner
	resolver    FeeResolver
	sink        audit.Sink
	metrics     *metrics.Metrics
}

func NewService(
	accounts AccountRepository,
	lines InvoiceLineRepository,
	payments PaymentRepository,
	methods PaymentMethodRepository,
	adjustments AdjustmentRepository,
	tx TxRunner,
	resolver FeeResolver,
	sink audit.Sink,
) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{
		accounts:    accounts,
		lines:       lines,
		payments:    payments,
		methods:     methods,
		adjustments: adjustments,
		tx:          tx,
		resolver:    resolver,
		sink:        sink,
	}
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

// clampZero floors a balance at zero. A credit balance is never represented
// as negative; surplus payment is simply dropped.
func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// -- Accounts --

func (s *Service) CreateAccount(ctx context.Context, patientID uuid.UUID) (*Account, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	a := &Account{PatientID: patientID, BalanceDue: decimal.Zero}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) GetAccountByPatient(ctx context.Context, patientID uuid.UUID) (*Account, error) {
	return s.accounts.GetByPatient(ctx, patientID)
}

func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.accounts.Delete(ctx, id)
}

// -- Invoice lines --

// LineInput describes one charge to add. When Amount is nil the fee is
// resolved from the plan's schedule or the catalog default.
type LineInput struct {
	ProcedureCode *string          `json:"procedure_code,omitempty"`
	Description   string           `json:"description"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

// AddLines appends charges for one service date and increases the balance by
// their sum. Either the whole batch is applied or nothing changes.
func (s *Service) AddLines(ctx context.Context, accountID uuid.UUID, serviceDate time.Time, planIdentifier string, inputs []LineInput) ([]*InvoiceLine, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one line is required")
	}
	if serviceDate.IsZero() {
		return nil, fmt.Errorf("service_date is required")
	}

	resolved := make([]*InvoiceLine, 0, len(inputs))
	total := decimal.Zero
	for i, in := range inputs {
		if in.Description == "" {
			return nil, fmt.Errorf("line %d: description is required", i)
		}
		var amount decimal.Decimal
		switch {
		case in.Amount != nil:
			amount = *in.Amount
		case in.ProcedureCode != nil && s.resolver != nil:
			var err error
			amount, err = s.resolver.ResolveFee(ctx, *in.ProcedureCode, planIdentifier, nil)
			if err != nil {
				return nil, fmt.Errorf("line %d: resolve fee: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("line %d: amount or procedure_code is required", i)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("line %d: amount must not be negative", i)
		}
		resolved = append(resolved, &InvoiceLine{
			AccountID:     accountID,
			ServiceDate:   serviceDate,
			ProcedureCode: in.ProcedureCode,
			Description:   in.Description,
			Amount:        amount,
			Status:        LineStatusPending,
		})
		total = total.Add(amount)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		for _, line := range resolved {
			if err := s.lines.Create(ctx, line); err != nil {
				return err
			}
		}
		account.BalanceDue = account.BalanceDue.Add(total)
		if err := s.accounts.UpdateBalance(ctx, account); err != nil {
			return err
		}
		return s.audit(ctx, "invoice.lines_added", accountID,
			fmt.Sprintf("count=%d total=%s", len(resolved), total))
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// SetLineStatus updates a line's advisory display status. It has no effect
// on the balance.
func (s *Service) SetLineStatus(ctx context.Context, accountID, lineID uuid.UUID, status string) error {
	switch status {
	case LineStatusPending, LineStatusPaid, LineStatusPartiallyPaid:
	default:
		return fmt.Errorf("invalid line status: %s", status)
	}
	line, err := s.lines.GetByID(ctx, lineID)
	if err != nil {
		return err
	}
	if line.AccountID != accountID {
		return fmt.Errorf("line does not belong to account")
	}
	return s.lines.UpdateStatus(ctx, lineID, status)
}

// LinesByServiceDate groups an account's lines by service date, most recent
// first. Grouping is a pure projection, not a stored relationship.
func (s *Service) LinesByServiceDate(ctx context.Context, accountID uuid.UUID) ([]*ServiceDateGroup, error) {
	lines, err := s.lines.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	byDate := make(map[time.Time]*ServiceDateGroup)
	for _, line := range lines {
		day := truncateToDay(line.ServiceDate)
		group, ok := byDate[day]
		if !ok {
			group = &ServiceDateGroup{ServiceDate: day, Total: decimal.Zero}
			byDate[day] = group
		}
		group.Lines = append(group.Lines, line)
		group.Total = group.Total.Add(line.Amount)
	}

	groups := make([]*ServiceDateGroup, 0, len(byDate))
	for _, g := range byDate {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].ServiceDate.After(groups[j].ServiceDate)
	})
	return groups, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// -- Payments --

// PaymentInput describes a payment to record. Amounts are interpreted by
// mode: out-of-pocket requires OutOfPocket > 0, insurance requires
// WithInsurance >= 0, split requires both non-negative with at least one
// strictly positive.
type PaymentInput struct {
	Mode            string           `json:"mode"`
	OutOfPocket     decimal.Decimal  `json:"out_of_pocket"`
	WithInsurance   decimal.Decimal  `json:"with_insurance"`
	PaymentMethodID *uuid.UUID       `json:"payment_method_id,omitempty"`
	Note            *string          `json:"note,omitempty"`
	Date            *time.Time       `json:"date,omitempty"`
}

// RecordPayment validates and appends a payment, reducing the balance by the
// payment total, floored at zero. Overpayment is not tracked as credit.
func (s *Service) RecordPayment(ctx context.Context, accountID uuid.UUID, in PaymentInput) (*Payment, error) {
	oop, ins := in.OutOfPocket, in.WithInsurance
	if oop.IsNegative() || ins.IsNegative() {
		return nil, fmt.Errorf("payment amounts must not be negative")
	}

	switch in.Mode {
	case PaymentModeOutOfPocket:
		if !oop.IsPositive() {
			return nil, fmt.Errorf("out-of-pocket payment requires a positive amount")
		}
		if !ins.IsZero() {
			return nil, fmt.Errorf("out-of-pocket payment must not carry an insurance amount")
		}
	case PaymentModeInsurance:
		if !oop.IsZero() {
			return nil, fmt.Errorf("insurance payment must not carry an out-of-pocket amount")
		}
	case PaymentModeSplit:
		if !oop.IsPositive() && !ins.IsPositive() {
			return nil, fmt.Errorf("split payment requires at least one positive amount")
		}
	default:
		return nil, fmt.Errorf("invalid payment mode: %s", in.Mode)
	}

	total := oop.Add(ins)
	date := time.Now().UTC()
	if in.Date != nil {
		date = *in.Date
	}

	payment := &Payment{
		AccountID:           accountID,
		Date:                date,
		Amount:              total,
		AmountOutOfPocket:   &oop,
		AmountWithInsurance: &ins,
		PaymentMethodID:     in.PaymentMethodID,
		Note:                in.Note,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if in.PaymentMethodID != nil {
			method, err := s.methods.GetByID(ctx, *in.PaymentMethodID)
			if err != nil {
				return fmt.Errorf("payment method not found")
			}
			if method.AccountID != accountID {
				return fmt.Errorf("payment method does not belong to account")
			}
		}
		if err := s.payments.Create(ctx, payment); err != nil {
			return err
		}
		account.BalanceDue = clampZero(account.BalanceDue.Sub(total))
		if err := s.accounts.UpdateBalance(ctx, account); err != nil {
			return err
		}
		return s.audit(ctx, "payment.recorded", accountID,
			fmt.Sprintf("mode=%s total=%s", in.Mode, total))
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
	}
	return payment, nil
}

// PostInsurancePayment records an adjudication payout against the account.
// It joins the caller's transaction so the claim update and the ledger
// posting commit together.
func (s *Service) PostInsurancePayment(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, note string) (*Payment, error) {
	return s.RecordPayment(ctx, accountID, PaymentInput{
		Mode:          PaymentModeInsurance,
		WithInsurance: amount,
		Note:          &note,
	})
}

func (s *Service) ListPayments(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return s.payments.ListByAccount(ctx, accountID, limit, offset)
}

// -- Payment methods --

// MethodInput carries raw payment-method details. CardNumber is used once to
// derive the brand and last four digits and is then discarded.
type MethodInput struct {
	Type        string `json:"type"`
	CardNumber  string `json:"card_number,omitempty"`
	NameOnCard  string `json:"name_on_card,omitempty"`
	ExpiryMonth int    `json:"expiry_month,omitempty"`
	ExpiryYear  int    `json:"expiry_year,omitempty"`
}

func (s *Service) AddPaymentMethod(ctx context.Context, accountID uuid.UUID, in MethodInput) (*PaymentMethod, error) {
	switch in.Type {
	case MethodTypeCard, MethodTypeCheck, MethodTypeCash, MethodTypeOther:
	default:
		return nil, fmt.Errorf("invalid payment method type: %s", in.Type)
	}

	method := &PaymentMethod{AccountID: accountID, Type: in.Type}

	if in.Type == MethodTypeCard {
		digits := digitsOnly(in.CardNumber)
		if len(digits) < 4 {
			return nil, fmt.Errorf("card number must have at least 4 digits")
		}
		if in.ExpiryMonth < 1 || in.ExpiryMonth > 12 {
			return nil, fmt.Errorf("expiry_month must be between 1 and 12")
		}
		brand := string(cardbrand.Identify(digits))
		last := cardbrand.LastFour(digits)
		method.CardBrand = &brand
		method.LastFour = &last
		method.ExpiryMonth = &in.ExpiryMonth
		method.ExpiryYear = &in.ExpiryYear
		if in.NameOnCard != "" {
			method.NameOnCard = &in.NameOnCard
		}
	}

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.methods.Create(ctx, method); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, "payment_method.added", accountID, "type="+in.Type); err != nil {
		return nil, err
	}
	return method, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Service) ListPaymentMethods(ctx context.Context, accountID uuid.UUID) ([]*PaymentMethod, error) {
	return s.methods.ListByAccount(ctx, accountID)
}

func (s *Service) DeletePaymentMethod(ctx context.Context, accountID, methodID uuid.UUID) error {
	method, err := s.methods.GetByID(ctx, methodID)
	if err != nil {
		return err
	}
	if method.AccountID != accountID {
		return fmt.Errorf("payment method does not belong to account")
	}
	return s.methods.Delete(ctx, methodID)
}

// -- Adjustments --

// ApplyAdjustment appends a write-off or adjustment and reduces the balance,
// floored at zero. Amount must be positive and a reason is required.
func (s *Service) ApplyAdjustment(ctx context.Context, accountID uuid.UUID, adjType string, amount decimal.Decimal, reason string) (*Adjustment, error) {
	switch adjType {
	case AdjustmentTypeWriteOff, AdjustmentTypeAdjustment:
	default:
		return nil, fmt.Errorf("invalid adjustment type: %s", adjType)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("adjustment amount must be positive")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("reason is required")
	}

	adj := &Adjustment{
		AccountID: accountID,
		Date:      time.Now().UTC(),
		Amount:    amount,
		Reason:    reason,
		Type:      adjType,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := s.adjustments.Create(ctx, adj); err != nil {
			return err
		}
		account.BalanceDue = clampZero(account.BalanceDue.Sub(amount))
		if err := s.accounts.UpdateBalance(ctx, account); err != nil {
			return err
		}
		return s.audit(ctx, "adjustment.applied", accountID,
			fmt.Sprintf("type=%s amount=%s", adjType, amount))
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

func (s *Service) ListAdjustments(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Adjustment, int, error) {
	return s.adjustments.ListByAccount(ctx, accountID, limit, offset)
}

// -- Reconciliation --

// RecomputeBalance derives the balance from the full ledger history and
// writes it back: max(0, sum(lines) - sum(payments) - sum(adjustments)).
// Idempotent; used by tests and periodic audits to detect drift.
func (s *Service) RecomputeBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var result decimal.Decimal
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		lines, err := s.lines.ListByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		charged := decimal.Zero
		for _, line := range lines {
			charged = charged.Add(line.Amount)
		}

		paid := decimal.Zero
		payments, _, err := s.payments.ListByAccount(ctx, accountID, allRows, 0)
		if err != nil {
			return err
		}
		for _, p := range payments {
			paid = paid.Add(p.Amount)
		}

		adjusted := decimal.Zero
		adjs, _, err := s.adjustments.ListByAccount(ctx, accountID, allRows, 0)
		if err != nil {
			return err
		}
		for _, a := range adjs {
			adjusted = adjusted.Add(a.Amount)
		}

		result = clampZero(charged.Sub(paid).Sub(adjusted))
		if account.BalanceDue.Equal(result) {
			return nil
		}
		account.BalanceDue = result
		if err := s.accounts.UpdateBalance(ctx, account); err != nil {
			return err
		}
		return s.audit(ctx, "balance.recomputed", accountID, "balance="+result.String())
	})
	if err != nil {
		return decimal.Zero, err
	}
	if s.metrics != nil {
		s.metrics.BalanceRecomputes.Inc()
	}
	return result, nil
}

// allRows is a limit large enough to fetch an account's full history in one
// page. Account ledgers are small.
const allRows = 1 << 20
