package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentpm/dentpm/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// PGTxRunner implements TxRunner over a pgx pool.
type PGTxRunner struct{ pool *pgxpool.Pool }

func NewPGTxRunner(pool *pgxpool.Pool) *PGTxRunner { return &PGTxRunner{pool: pool} }

func (r *PGTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

// =========== Account Repository ===========

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewAccountRepoPG(pool *pgxpool.Pool) AccountRepository { return &accountRepoPG{pool: pool} }

const accountCols = `id, patient_id, balance_due, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.PatientID, &a.BalanceDue, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return &a, err
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO accounts (id, patient_id, balance_due)
		VALUES ($1, $2, $3)`,
		a.ID, a.PatientID, a.BalanceDue)
	return err
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *accountRepoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*Account, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE patient_id = $1`, patientID)
	return scanAccount(row)
}

func (r *accountRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func (r *accountRepoPG) UpdateBalance(ctx context.Context, a *Account) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE accounts SET balance_due = $2, updated_at = NOW() WHERE id = $1`,
		a.ID, a.BalanceDue)
	return err
}

func (r *accountRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

func (r *accountRepoPG) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========== Invoice Line Repository ===========

type invoiceLineRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceLineRepoPG(pool *pgxpool.Pool) InvoiceLineRepository {
	return &invoiceLineRepoPG{pool: pool}
}

const lineCols = `id, account_id, service_date, procedure_code, description,
	amount, amount_with_insurance, amount_out_of_pocket, status, added_at`

func scanLine(row pgx.Row) (*InvoiceLine, error) {
	var l InvoiceLine
	err := row.Scan(&l.ID, &l.AccountID, &l.ServiceDate, &l.ProcedureCode, &l.Description,
		&l.Amount, &l.AmountWithInsurance, &l.AmountOutOfPocket, &l.Status, &l.AddedAt)
	return &l, err
}

func (r *invoiceLineRepoPG) Create(ctx context.Context, l *InvoiceLine) error {
	l.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO invoice_lines (id, account_id, service_date, procedure_code, description,
			amount, amount_with_insurance, amount_out_of_pocket, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING added_at`,
		l.ID, l.AccountID, l.ServiceDate, l.ProcedureCode, l.Description,
		l.Amount, l.AmountWithInsurance, l.AmountOutOfPocket, l.Status).
		Scan(&l.AddedAt)
}

func (r *invoiceLineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceLine, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+lineCols+` FROM invoice_lines WHERE id = $1`, id)
	return scanLine(row)
}

func (r *invoiceLineRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE invoice_lines SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *invoiceLineRepoPG) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*InvoiceLine, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+lineCols+` FROM invoice_lines WHERE account_id = $1 ORDER BY service_date DESC, added_at`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLines(rows)
}

func (r *invoiceLineRepoPG) ListUnpaid(ctx context.Context) ([]*InvoiceLine, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+lineCols+` FROM invoice_lines WHERE status <> $1 ORDER BY service_date`,
		LineStatusPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLines(rows)
}

func collectLines(rows pgx.Rows) ([]*InvoiceLine, error) {
	var lines []*InvoiceLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

const paymentCols = `id, account_id, date, amount, amount_out_of_pocket,
	amount_with_insurance, payment_method_id, note, created_at`

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payments (id, account_id, date, amount, amount_out_of_pocket,
			amount_with_insurance, payment_method_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		p.ID, p.AccountID, p.Date, p.Amount, p.AmountOutOfPocket,
		p.AmountWithInsurance, p.PaymentMethodID, p.Note).
		Scan(&p.CreatedAt)
}

func (r *paymentRepoPG) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	q := conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE account_id = $1 ORDER BY date DESC, created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Date, &p.Amount, &p.AmountOutOfPocket,
			&p.AmountWithInsurance, &p.PaymentMethodID, &p.Note, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		payments = append(payments, &p)
	}
	return payments, total, rows.Err()
}

// =========== Payment Method Repository ===========

type paymentMethodRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentMethodRepoPG(pool *pgxpool.Pool) PaymentMethodRepository {
	return &paymentMethodRepoPG{pool: pool}
}

const methodCols = `id, account_id, type, last_four, card_brand, name_on_card,
	expiry_month, expiry_year, created_at`

func scanMethod(row pgx.Row) (*PaymentMethod, error) {
	var m PaymentMethod
	err := row.Scan(&m.ID, &m.AccountID, &m.Type, &m.LastFour, &m.CardBrand, &m.NameOnCard,
		&m.ExpiryMonth, &m.ExpiryYear, &m.CreatedAt)
	return &m, err
}

func (r *paymentMethodRepoPG) Create(ctx context.Context, m *PaymentMethod) error {
	m.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payment_methods (id, account_id, type, last_four, card_brand,
			name_on_card, expiry_month, expiry_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		m.ID, m.AccountID, m.Type, m.LastFour, m.CardBrand,
		m.NameOnCard, m.ExpiryMonth, m.ExpiryYear).
		Scan(&m.CreatedAt)
}

func (r *paymentMethodRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PaymentMethod, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+methodCols+` FROM payment_methods WHERE id = $1`, id)
	return scanMethod(row)
}

func (r *paymentMethodRepoPG) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*PaymentMethod, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+methodCols+` FROM payment_methods WHERE account_id = $1 ORDER BY created_at`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []*PaymentMethod
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *paymentMethodRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	return err
}

// =========== Adjustment Repository ===========

type adjustmentRepoPG struct{ pool *pgxpool.Pool }

func NewAdjustmentRepoPG(pool *pgxpool.Pool) AdjustmentRepository {
	return &adjustmentRepoPG{pool: pool}
}

func (r *adjustmentRepoPG) Create(ctx context.Context, a *Adjustment) error {
	a.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO adjustments (id, account_id, date, amount, reason, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		a.ID, a.AccountID, a.Date, a.Amount, a.Reason, a.Type).
		Scan(&a.CreatedAt)
}

func (r *adjustmentRepoPG) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Adjustment, int, error) {
	q := conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM adjustments WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, account_id, date, amount, reason, type, created_at
		FROM adjustments WHERE account_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var adjs []*Adjustment
	for rows.Next() {
		var a Adjustment
		if err := rows.Scan(&a.ID, &a.AccountID, &a.Date, &a.Amount, &a.Reason, &a.Type, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		adjs = append(adjs, &a)
	}
	return adjs, total, rows.Err()
}
