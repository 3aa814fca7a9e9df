package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentpm/dentpm/internal/platform/audit"
)

// -- Mock Repositories --

type mockAccountRepo struct {
	items map[uuid.UUID]*Account
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{items: make(map[uuid.UUID]*Account)}
}

func (m *mockAccountRepo) Create(_ context.Context, a *Account) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.items[a.ID] = a
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockAccountRepo) GetByPatient(_ context.Context, patientID uuid.UUID) (*Account, error) {
	for _, a := range m.items {
		if a.PatientID == patientID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Account, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAccountRepo) UpdateBalance(_ context.Context, a *Account) error {
	stored, ok := m.items[a.ID]
	if !ok {
		return ErrAccountNotFound
	}
	stored.BalanceDue = a.BalanceDue
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *mockAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockAccountRepo) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range m.items {
		ids = append(ids, id)
	}
	return ids, nil
}

type mockLineRepo struct {
	items []*InvoiceLine
}

func (m *mockLineRepo) Create(_ context.Context, l *InvoiceLine) error {
	l.ID = uuid.New()
	l.AddedAt = time.Now()
	m.items = append(m.items, l)
	return nil
}

func (m *mockLineRepo) GetByID(_ context.Context, id uuid.UUID) (*InvoiceLine, error) {
	for _, l := range m.items {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("line not found")
}

func (m *mockLineRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	for _, l := range m.items {
		if l.ID == id {
			l.Status = status
			return nil
		}
	}
	return fmt.Errorf("line not found")
}

func (m *mockLineRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*InvoiceLine, error) {
	var result []*InvoiceLine
	for _, l := range m.items {
		if l.AccountID == accountID {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockLineRepo) ListUnpaid(_ context.Context) ([]*InvoiceLine, error) {
	var result []*InvoiceLine
	for _, l := range m.items {
		if l.Status != LineStatusPaid {
			result = append(result, l)
		}
	}
	return result, nil
}

type mockPaymentRepo struct {
	items []*Payment
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.items = append(m.items, p)
	return nil
}

func (m *mockPaymentRepo) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	var result []*Payment
	for _, p := range m.items {
		if p.AccountID == accountID {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

type mockMethodRepo struct {
	items map[uuid.UUID]*PaymentMethod
}

func newMockMethodRepo() *mockMethodRepo {
	return &mockMethodRepo{items: make(map[uuid.UUID]*PaymentMethod)}
}

func (m *mockMethodRepo) Create(_ context.Context, pm *PaymentMethod) error {
	pm.ID = uuid.New()
	pm.CreatedAt = time.Now()
	m.items[pm.ID] = pm
	return nil
}

func (m *mockMethodRepo) GetByID(_ context.Context, id uuid.UUID) (*PaymentMethod, error) {
	pm, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("payment method not found")
	}
	return pm, nil
}

func (m *mockMethodRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*PaymentMethod, error) {
	var result []*PaymentMethod
	for _, pm := range m.items {
		if pm.AccountID == accountID {
			result = append(result, pm)
		}
	}
	return result, nil
}

func (m *mockMethodRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

type mockAdjustmentRepo struct {
	items []*Adjustment
}

func (m *mockAdjustmentRepo) Create(_ context.Context, a *Adjustment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.items = append(m.items, a)
	return nil
}

func (m *mockAdjustmentRepo) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*Adjustment, int, error) {
	var result []*Adjustment
	for _, a := range m.items {
		if a.AccountID == accountID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

// mockTxRunner runs the function directly; the mock repos have no real
// transactions to join.
type mockTxRunner struct{}

func (mockTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recordingSink collects audit events for assertions.
type recordingSink struct {
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, evt audit.Event) error {
	s.events = append(s.events, evt)
	return nil
}

type stubResolver struct {
	fees map[string]decimal.Decimal
}

func (r *stubResolver) ResolveFee(_ context.Context, code, plan string, override *decimal.Decimal) (decimal.Decimal, error) {
	if override != nil {
		return *override, nil
	}
	if fee, ok := r.fees[plan+"/"+code]; ok {
		return fee, nil
	}
	if fee, ok := r.fees[code]; ok {
		return fee, nil
	}
	return decimal.Zero, nil
}

type testEnv struct {
	svc      *Service
	accounts *mockAccountRepo
	lines    *mockLineRepo
	payments *mockPaymentRepo
	methods  *mockMethodRepo
	adjs     *mockAdjustmentRepo
	sink     *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts: newMockAccountRepo(),
		lines:    &mockLineRepo{},
		payments: &mockPaymentRepo{},
		methods:  newMockMethodRepo(),
		adjs:     &mockAdjustmentRepo{},
		sink:     &recordingSink{},
	}
	resolver := &stubResolver{fees: map[string]decimal.Decimal{
		"D0120":           dec("52.00"),
		"delta-ppo/D0120": dec("43.00"),
	}}
	env.svc = NewService(env.accounts, env.lines, env.payments, env.methods, env.adjs,
		mockTxRunner{}, resolver, env.sink)
	return env
}

func (e *testEnv) newAccount(t *testing.T) *Account {
	t.Helper()
	a, err := e.svc.CreateAccount(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func (e *testEnv) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	a, err := e.svc.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.BalanceDue
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func amt(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

// -- Scenario from the billing workflow --

func TestLedger_ChargePaySplitThenFlooredWriteOff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	_, err := env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{Description: "Crown", Amount: amt("225.00")},
	})
	if err != nil {
		t.Fatalf("add lines: %v", err)
	}
	if got := env.balance(t, account.ID); !got.Equal(dec("225.00")) {
		t.Fatalf("expected balance 225.00, got %s", got)
	}

	_, err = env.svc.RecordPayment(ctx, account.ID, PaymentInput{
		Mode:          PaymentModeSplit,
		OutOfPocket:   dec("85.00"),
		WithInsurance: dec("140.00"),
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if got := env.balance(t, account.ID); !got.IsZero() {
		t.Fatalf("expected balance 0.00 after split payment, got %s", got)
	}

	_, err = env.svc.ApplyAdjustment(ctx, account.ID, AdjustmentTypeWriteOff, dec("10.00"), "courtesy")
	if err != nil {
		t.Fatalf("apply adjustment: %v", err)
	}
	if got := env.balance(t, account.ID); !got.IsZero() {
		t.Fatalf("expected balance floored at 0.00, got %s", got)
	}
}

func TestLedger_Conservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{Description: "Exam", Amount: amt("52.00")},
		{Description: "X-ray", Amount: amt("31.00")},
	})
	env.svc.AddLines(ctx, account.ID, day.AddDate(0, 0, 7), "", []LineInput{
		{Description: "Filling", Amount: amt("185.50")},
	})
	env.svc.RecordPayment(ctx, account.ID, PaymentInput{
		Mode: PaymentModeOutOfPocket, OutOfPocket: dec("100.00"),
	})
	env.svc.ApplyAdjustment(ctx, account.ID, AdjustmentTypeAdjustment, dec("8.50"), "billing correction")

	// 52 + 31 + 185.50 - 100 - 8.50 = 160.00
	if got := env.balance(t, account.ID); !got.Equal(dec("160.00")) {
		t.Fatalf("expected balance 160.00, got %s", got)
	}

	// The incremental balance agrees with the recomputed one.
	recomputed, err := env.svc.RecomputeBalance(ctx, account.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !recomputed.Equal(dec("160.00")) {
		t.Fatalf("expected recomputed balance 160.00, got %s", recomputed)
	}
}

func TestLedger_NonNegativity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{Description: "Exam", Amount: amt("50.00")},
	})
	env.svc.RecordPayment(ctx, account.ID, PaymentInput{
		Mode: PaymentModeOutOfPocket, OutOfPocket: dec("500.00"),
	})
	if got := env.balance(t, account.ID); !got.IsZero() {
		t.Fatalf("expected balance clamped to zero on overpayment, got %s", got)
	}

	env.svc.ApplyAdjustment(ctx, account.ID, AdjustmentTypeWriteOff, dec("25.00"), "goodwill")
	if got := env.balance(t, account.ID); !got.IsZero() {
		t.Fatalf("expected balance to stay zero, got %s", got)
	}
}

// -- AddLines --

func TestAddLines_ResolvesFees(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	code := "D0120"
	lines, err := env.svc.AddLines(ctx, account.ID, day, "delta-ppo", []LineInput{
		{ProcedureCode: &code, Description: "Periodic oral evaluation"},
	})
	if err != nil {
		t.Fatalf("add lines: %v", err)
	}
	if !lines[0].Amount.Equal(dec("43.00")) {
		t.Errorf("expected plan fee 43.00, got %s", lines[0].Amount)
	}
	if lines[0].Status != LineStatusPending {
		t.Errorf("expected pending status, got %s", lines[0].Status)
	}
	if got := env.balance(t, account.ID); !got.Equal(dec("43.00")) {
		t.Errorf("expected balance 43.00, got %s", got)
	}
}

func TestAddLines_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	tests := []struct {
		name   string
		date   time.Time
		inputs []LineInput
	}{
		{"no lines", day, nil},
		{"zero date", time.Time{}, []LineInput{{Description: "x", Amount: amt("1.00")}}},
		{"missing description", day, []LineInput{{Amount: amt("1.00")}}},
		{"no amount or code", day, []LineInput{{Description: "x"}}},
		{"negative amount", day, []LineInput{{Description: "x", Amount: amt("-1.00")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.AddLines(ctx, account.ID, tt.date, "", tt.inputs); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	// Nothing was applied
	if got := env.balance(t, account.ID); !got.IsZero() {
		t.Errorf("expected untouched balance, got %s", got)
	}
}

func TestAddLines_UnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.AddLines(context.Background(), uuid.New(), day, "", []LineInput{
		{Description: "Exam", Amount: amt("50.00")},
	})
	if err == nil {
		t.Fatal("expected error for unknown account")
	}
}

func TestAddLines_ZeroFeeLineIsValid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	code := "D9999"
	lines, err := env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{ProcedureCode: &code, Description: "Courtesy polish"},
	})
	if err != nil {
		t.Fatalf("add lines: %v", err)
	}
	if !lines[0].Amount.IsZero() {
		t.Errorf("expected zero fee for unknown code, got %s", lines[0].Amount)
	}
}

// -- Payments --

func TestRecordPayment_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	tests := []struct {
		name string
		in   PaymentInput
	}{
		{"invalid mode", PaymentInput{Mode: "venmo", OutOfPocket: dec("1.00")}},
		{"out-of-pocket zero", PaymentInput{Mode: PaymentModeOutOfPocket}},
		{"out-of-pocket negative", PaymentInput{Mode: PaymentModeOutOfPocket, OutOfPocket: dec("-5.00")}},
		{"out-of-pocket with insurance portion", PaymentInput{Mode: PaymentModeOutOfPocket, OutOfPocket: dec("5.00"), WithInsurance: dec("5.00")}},
		{"insurance with oop portion", PaymentInput{Mode: PaymentModeInsurance, OutOfPocket: dec("5.00")}},
		{"insurance negative", PaymentInput{Mode: PaymentModeInsurance, WithInsurance: dec("-5.00")}},
		{"split both zero", PaymentInput{Mode: PaymentModeSplit}},
		{"split negative portion", PaymentInput{Mode: PaymentModeSplit, OutOfPocket: dec("-1.00"), WithInsurance: dec("5.00")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.RecordPayment(ctx, account.ID, tt.in); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRecordPayment_InsuranceZeroAmountAllowed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	p, err := env.svc.RecordPayment(ctx, account.ID, PaymentInput{Mode: PaymentModeInsurance})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Amount.IsZero() {
		t.Errorf("expected zero total, got %s", p.Amount)
	}
}

func TestRecordPayment_TotalIsSumOfPortions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	p, err := env.svc.RecordPayment(ctx, account.ID, PaymentInput{
		Mode:          PaymentModeSplit,
		OutOfPocket:   dec("85.00"),
		WithInsurance: dec("140.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Amount.Equal(dec("225.00")) {
		t.Errorf("expected total 225.00, got %s", p.Amount)
	}
	if !p.AmountOutOfPocket.Equal(dec("85.00")) || !p.AmountWithInsurance.Equal(dec("140.00")) {
		t.Errorf("unexpected portions: oop=%s ins=%s", p.AmountOutOfPocket, p.AmountWithInsurance)
	}
}

func TestRecordPayment_ForeignMethodRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)
	other := env.newAccount(t)

	method, err := env.svc.AddPaymentMethod(ctx, other.ID, MethodInput{
		Type: MethodTypeCard, CardNumber: "4111111111111111", ExpiryMonth: 12, ExpiryYear: 2030,
	})
	if err != nil {
		t.Fatalf("add method: %v", err)
	}

	_, err = env.svc.RecordPayment(ctx, account.ID, PaymentInput{
		Mode:            PaymentModeOutOfPocket,
		OutOfPocket:     dec("10.00"),
		PaymentMethodID: &method.ID,
	})
	if err == nil {
		t.Fatal("expected error for another account's payment method")
	}
}

func TestPostInsurancePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{Description: "Crown", Amount: amt("1295.00")},
	})

	p, err := env.svc.PostInsurancePayment(ctx, account.ID, dec("845.00"), "claim adjudication")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Amount.Equal(dec("845.00")) {
		t.Errorf("expected amount 845.00, got %s", p.Amount)
	}
	if !p.AmountOutOfPocket.IsZero() {
		t.Errorf("expected zero out-of-pocket portion, got %s", p.AmountOutOfPocket)
	}
	if got := env.balance(t, account.ID); !got.Equal(dec("450.00")) {
		t.Errorf("expected balance 450.00, got %s", got)
	}
}

// -- Payment methods --

func TestAddPaymentMethod_CardDerivesBrandAndLastFour(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	method, err := env.svc.AddPaymentMethod(ctx, account.ID, MethodInput{
		Type:        MethodTypeCard,
		CardNumber:  "4111 1111 1111 1111",
		NameOnCard:  "Pat Doe",
		ExpiryMonth: 6,
		ExpiryYear:  2029,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method.CardBrand == nil || *method.CardBrand != "visa" {
		t.Errorf("expected visa brand, got %v", method.CardBrand)
	}
	if method.LastFour == nil || *method.LastFour != "1111" {
		t.Errorf("expected last four 1111, got %v", method.LastFour)
	}
}

func TestAddPaymentMethod_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	tests := []struct {
		name string
		in   MethodInput
	}{
		{"invalid type", MethodInput{Type: "crypto"}},
		{"short card number", MethodInput{Type: MethodTypeCard, CardNumber: "411", ExpiryMonth: 6, ExpiryYear: 2029}},
		{"bad expiry month", MethodInput{Type: MethodTypeCard, CardNumber: "4111111111111111", ExpiryMonth: 13, ExpiryYear: 2029}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.AddPaymentMethod(ctx, account.ID, tt.in); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAddPaymentMethod_CashHasNoCardFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	method, err := env.svc.AddPaymentMethod(ctx, account.ID, MethodInput{Type: MethodTypeCash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method.CardBrand != nil || method.LastFour != nil {
		t.Error("expected no card fields on cash method")
	}
}

// -- Adjustments --

func TestApplyAdjustment_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	tests := []struct {
		name    string
		adjType string
		amount  decimal.Decimal
		reason  string
	}{
		{"invalid type", "refund", dec("10.00"), "x"},
		{"zero amount", AdjustmentTypeWriteOff, decimal.Zero, "x"},
		{"negative amount", AdjustmentTypeWriteOff, dec("-10.00"), "x"},
		{"empty reason", AdjustmentTypeWriteOff, dec("10.00"), ""},
		{"blank reason", AdjustmentTypeWriteOff, dec("10.00"), "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.ApplyAdjustment(ctx, account.ID, tt.adjType, tt.amount, tt.reason); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// -- Line status and grouping --

func TestSetLineStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	lines, _ := env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{Description: "Exam", Amount: amt("52.00")},
	})

	if err := env.svc.SetLineStatus(ctx, account.ID, lines[0].ID, LineStatusPaid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Status change does not touch the balance
	if got := env.balance(t, account.ID); !got.Equal(dec("52.00")) {
		t.Errorf("expected balance unchanged at 52.00, got %s", got)
	}

	if err := env.svc.SetLineStatus(ctx, account.ID, lines[0].ID, "settled"); err == nil {
		t.Error("expected error for invalid status")
	}

	other := env.newAccount(t)
	if err := env.svc.SetLineStatus(ctx, other.ID, lines[0].ID, LineStatusPaid); err == nil {
		t.Error("expected error for another account's line")
	}
}

func TestLinesByServiceDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	older := day.AddDate(0, 0, -14)
	env.svc.AddLines(ctx, account.ID, older, "", []LineInput{
		{Description: "Exam", Amount: amt("52.00")},
		{Description: "X-ray", Amount: amt("31.00")},
	})
	env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{Description: "Filling", Amount: amt("185.00")},
	})

	groups, err := env.svc.LinesByServiceDate(ctx, account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	// Most recent first
	if !groups[0].ServiceDate.Equal(day) {
		t.Errorf("expected newest group first, got %s", groups[0].ServiceDate)
	}
	if !groups[0].Total.Equal(dec("185.00")) {
		t.Errorf("expected newest group total 185.00, got %s", groups[0].Total)
	}
	if len(groups[1].Lines) != 2 || !groups[1].Total.Equal(dec("83.00")) {
		t.Errorf("expected older group with 2 lines totalling 83.00, got %d lines totalling %s",
			len(groups[1].Lines), groups[1].Total)
	}
}

// -- Reconciliation --

func TestRecomputeBalance_FixesDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{Description: "Crown", Amount: amt("900.00")},
	})
	env.svc.RecordPayment(ctx, account.ID, PaymentInput{
		Mode: PaymentModeOutOfPocket, OutOfPocket: dec("300.00"),
	})

	// Desynchronize the stored balance behind the service's back.
	env.accounts.items[account.ID].BalanceDue = dec("9999.99")

	recomputed, err := env.svc.RecomputeBalance(ctx, account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recomputed.Equal(dec("600.00")) {
		t.Fatalf("expected recomputed balance 600.00, got %s", recomputed)
	}
	if got := env.balance(t, account.ID); !got.Equal(dec("600.00")) {
		t.Fatalf("expected stored balance repaired to 600.00, got %s", got)
	}

	// Idempotent
	again, err := env.svc.RecomputeBalance(ctx, account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again.Equal(dec("600.00")) {
		t.Fatalf("expected idempotent recompute, got %s", again)
	}
}

// -- Audit --

func TestMutations_EmitExactlyOneAuditEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	env.svc.AddLines(ctx, account.ID, day, "", []LineInput{
		{Description: "Exam", Amount: amt("52.00")},
		{Description: "X-ray", Amount: amt("31.00")},
	})
	if len(env.sink.events) != 1 {
		t.Fatalf("expected 1 audit event after AddLines batch, got %d", len(env.sink.events))
	}
	if env.sink.events[0].Action != "invoice.lines_added" {
		t.Errorf("unexpected action %q", env.sink.events[0].Action)
	}

	env.svc.RecordPayment(ctx, account.ID, PaymentInput{
		Mode: PaymentModeOutOfPocket, OutOfPocket: dec("10.00"),
	})
	env.svc.ApplyAdjustment(ctx, account.ID, AdjustmentTypeWriteOff, dec("5.00"), "goodwill")

	if len(env.sink.events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(env.sink.events))
	}
	if env.sink.events[1].Action != "payment.recorded" || env.sink.events[2].Action != "adjustment.applied" {
		t.Errorf("unexpected actions: %q, %q", env.sink.events[1].Action, env.sink.events[2].Action)
	}
	for _, evt := range env.sink.events {
		if evt.AccountID != account.ID {
			t.Errorf("expected account id %s on event, got %s", account.ID, evt.AccountID)
		}
	}
}

// Failed validations must not emit audit events or change state.
func TestFailedMutation_NoAuditNoStateChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t)

	env.svc.RecordPayment(ctx, account.ID, PaymentInput{Mode: "venmo"})
	env.svc.ApplyAdjustment(ctx, account.ID, AdjustmentTypeWriteOff, dec("10.00"), "")

	if len(env.sink.events) != 0 {
		t.Errorf("expected no audit events, got %d", len(env.sink.events))
	}
	if len(env.payments.items) != 0 || len(env.adjs.items) != 0 {
		t.Error("expected no records appended")
	}
}
