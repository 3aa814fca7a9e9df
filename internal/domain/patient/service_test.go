package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentpm/dentpm/internal/domain/ledger"
)

type mockPatientRepo struct {
	items map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{items: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.items[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.items[p.ID]; !ok {
		return ErrPatientNotFound
	}
	m.items[p.ID] = p
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrPatientNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.items {
		result = append(result, p)
	}
	return result, len(result), nil
}

// mockAccountManager tracks account open/close calls keyed by patient.
type mockAccountManager struct {
	byPatient map[uuid.UUID]*ledger.Account
}

func newMockAccountManager() *mockAccountManager {
	return &mockAccountManager{byPatient: make(map[uuid.UUID]*ledger.Account)}
}

func (m *mockAccountManager) CreateAccount(_ context.Context, patientID uuid.UUID) (*ledger.Account, error) {
	a := &ledger.Account{ID: uuid.New(), PatientID: patientID, BalanceDue: decimal.Zero}
	m.byPatient[patientID] = a
	return a, nil
}

func (m *mockAccountManager) GetAccountByPatient(_ context.Context, patientID uuid.UUID) (*ledger.Account, error) {
	a, ok := m.byPatient[patientID]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (m *mockAccountManager) DeleteAccount(_ context.Context, id uuid.UUID) error {
	for patientID, a := range m.byPatient {
		if a.ID == id {
			delete(m.byPatient, patientID)
			return nil
		}
	}
	return ledger.ErrAccountNotFound
}

type mockTxRunner struct{}

func (mockTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockPatientRepo, *mockAccountManager) {
	patients := newMockPatientRepo()
	accounts := newMockAccountManager()
	return NewService(patients, accounts, mockTxRunner{}), patients, accounts
}

func TestCreatePatient_OpensAccount(t *testing.T) {
	svc, _, accounts := newTestService()
	ctx := context.Background()

	p, account, err := svc.CreatePatient(ctx, &Patient{FirstName: "Pat", LastName: "Doe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account == nil || account.PatientID != p.ID {
		t.Fatal("expected an account opened for the new patient")
	}
	if !account.BalanceDue.IsZero() {
		t.Errorf("expected zero opening balance, got %s", account.BalanceDue)
	}
	if _, err := accounts.GetAccountByPatient(ctx, p.ID); err != nil {
		t.Errorf("expected account retrievable by patient: %v", err)
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, _, err := svc.CreatePatient(ctx, &Patient{LastName: "Doe"}); err == nil {
		t.Error("expected error for missing first name")
	}
	if _, _, err := svc.CreatePatient(ctx, &Patient{FirstName: "Pat", LastName: "  "}); err == nil {
		t.Error("expected error for blank last name")
	}
}

func TestDeletePatient_CascadesToAccount(t *testing.T) {
	svc, patients, accounts := newTestService()
	ctx := context.Background()

	p, _, err := svc.CreatePatient(ctx, &Patient{FirstName: "Pat", LastName: "Doe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := patients.GetByID(ctx, p.ID); err == nil {
		t.Error("expected patient removed")
	}
	if _, err := accounts.GetAccountByPatient(ctx, p.ID); err == nil {
		t.Error("expected account removed with the patient")
	}
}

func TestDeletePatient_Unknown(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.DeletePatient(context.Background(), uuid.New()); err == nil {
		t.Error("expected error for unknown patient")
	}
}

func TestPlanForPatient(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	plan := "delta-ppo"
	insured, _, err := svc.CreatePatient(ctx, &Patient{FirstName: "Pat", LastName: "Doe", PlanIdentifier: &plan})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.PlanForPatient(ctx, insured.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != plan {
		t.Errorf("expected plan %q, got %q", plan, got)
	}

	selfPay, _, err := svc.CreatePatient(ctx, &Patient{FirstName: "Sam", LastName: "Roe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = svc.PlanForPatient(ctx, selfPay.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty plan for self-pay, got %q", got)
	}
}
