package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dentpm/dentpm/internal/domain/ledger"
)

// AccountManager creates and removes the billing account paired with each
// patient. Satisfied by the ledger service.
type AccountManager interface {
	CreateAccount(ctx context.Context, patientID uuid.UUID) (*ledger.Account, error)
	GetAccountByPatient(ctx context.Context, patientID uuid.UUID) (*ledger.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	patients PatientRepository
	accounts AccountManager
	tx       ledger.TxRunner
}

func NewService(patients PatientRepository, accounts AccountManager, tx ledger.TxRunner) *Service {
	return &Service{patients: patients, accounts: accounts, tx: tx}
}

// CreatePatient registers a patient and opens their billing account in one
// transaction. Every patient has exactly one account.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) (*Patient, *ledger.Account, error) {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return nil, nil, fmt.Errorf("first_name and last_name are required")
	}

	var account *ledger.Account
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Create(ctx, p); err != nil {
			return err
		}
		var err error
		account, err = s.accounts.CreateAccount(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return p, account, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return nil, fmt.Errorf("first_name and last_name are required")
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// DeletePatient removes the patient and their billing account together. The
// account's ledger rows go with it via foreign keys.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetAccountByPatient(ctx, id)
		if err != nil && !errors.Is(err, ledger.ErrAccountNotFound) {
			return err
		}
		if account != nil {
			if err := s.accounts.DeleteAccount(ctx, account.ID); err != nil {
				return err
			}
		}
		return s.patients.Delete(ctx, id)
	})
}

// PlanForPatient returns the patient's insurance plan identifier, or empty
// for self-pay.
func (s *Service) PlanForPatient(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if p.PlanIdentifier == nil {
		return "", nil
	}
	return *p.PlanIdentifier, nil
}
