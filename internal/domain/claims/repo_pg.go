package claims

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

// =========== Claim Repository ===========

type claimRepoPG struct{ pool *pgxpool.Pool }

func NewClaimRepoPG(pool *pgxpool.Pool) ClaimRepository { return &claimRepoPG{pool: pool} }

const claimCols = `id, account_id, date, procedure_codes, description, amount, status, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.AccountID, &c.Date, &c.ProcedureCodes, &c.Description,
		&c.Amount, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClaimNotFound
	}
	return &c, err
}

func (r *claimRepoPG) Create(ctx context.Context, c *Claim) error {
	c.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO claims (id, account_id, date, procedure_codes, description, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		c.ID, c.AccountID, c.Date, c.ProcedureCodes, c.Description, c.Amount, c.Status).
		Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *claimRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+claimCols+` FROM claims WHERE id = $1`, id)
	return scanClaim(row)
}

func (r *claimRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Claim, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+claimCols+` FROM claims WHERE id = $1 FOR UPDATE`, id)
	return scanClaim(row)
}

func (r *claimRepoPG) UpdateStatus(ctx context.Context, c *Claim) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE claims SET status = $2, updated_at = NOW() WHERE id = $1`,
		c.ID, c.Status)
	return err
}

func (r *claimRepoPG) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	q := conn(ctx, r.pool)

	var total int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM claims WHERE account_id = $1`, accountID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.Query(ctx, `
		SELECT `+claimCols+` FROM claims
		WHERE account_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	claims, err := collectClaims(rows)
	return claims, total, err
}

func (r *claimRepoPG) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Claim, int, error) {
	q := conn(ctx, r.pool)

	var total int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM claims WHERE status = $1`, status).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.Query(ctx, `
		SELECT `+claimCols+` FROM claims
		WHERE status = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	claims, err := collectClaims(rows)
	return claims, total, err
}

func collectClaims(rows pgx.Rows) ([]*Claim, error) {
	var claims []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// =========== Claim Payment Repository ===========

type claimPaymentRepoPG struct{ pool *pgxpool.Pool }

func NewClaimPaymentRepoPG(pool *pgxpool.Pool) ClaimPaymentRepository {
	return &claimPaymentRepoPG{pool: pool}
}

func (r *claimPaymentRepoPG) Create(ctx context.Context, p *ClaimPayment) error {
	p.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO claim_payments
			(id, claim_id, payment_date, paid_amount, allowed_amount, adjustment_amount, patient_responsibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		p.ID, p.ClaimID, p.PaymentDate, p.PaidAmount,
		p.AllowedAmount, p.AdjustmentAmount, p.PatientResponsibility).
		Scan(&p.CreatedAt)
}

func (r *claimPaymentRepoPG) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*ClaimPayment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, claim_id, payment_date, paid_amount, allowed_amount, adjustment_amount,
		       patient_responsibility, created_at
		FROM claim_payments
		WHERE claim_id = $1
		ORDER BY payment_date ASC, created_at ASC`,
		claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*ClaimPayment
	for rows.Next() {
		var p ClaimPayment
		err := rows.Scan(&p.ID, &p.ClaimID, &p.PaymentDate, &p.PaidAmount,
			&p.AllowedAmount, &p.AdjustmentAmount, &p.PatientResponsibility, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}
