package fees

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

// =========== Procedure Repository ===========

type procedureRepoPG struct{ pool *pgxpool.Pool }

func NewProcedureRepoPG(pool *pgxpool.Pool) ProcedureRepository { return &procedureRepoPG{pool: pool} }

func (r *procedureRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const procCols = `id, code, description, default_fee, created_at, updated_at`

func (r *procedureRepoPG) scanProcedure(row pgx.Row) (*Procedure, error) {
	var p Procedure
	err := row.Scan(&p.ID, &p.Code, &p.Description, &p.DefaultFee, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *procedureRepoPG) Create(ctx context.Context, p *Procedure) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO procedure_catalog (id, code, description, default_fee)
		VALUES ($1, $2, $3, $4)`,
		p.ID, p.Code, p.Description, p.DefaultFee)
	return err
}

func (r *procedureRepoPG) GetByCode(ctx context.Context, code string) (*Procedure, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+procCols+` FROM procedure_catalog WHERE code = $1`, code)
	return r.scanProcedure(row)
}

func (r *procedureRepoPG) Update(ctx context.Context, p *Procedure) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE procedure_catalog
		SET description = $2, default_fee = $3, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Description, p.DefaultFee)
	return err
}

func (r *procedureRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM procedure_catalog WHERE id = $1`, id)
	return err
}

func (r *procedureRepoPG) List(ctx context.Context, limit, offset int) ([]*Procedure, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM procedure_catalog`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+procCols+` FROM procedure_catalog ORDER BY code LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var procs []*Procedure
	for rows.Next() {
		var p Procedure
		if err := rows.Scan(&p.ID, &p.Code, &p.Description, &p.DefaultFee, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		procs = append(procs, &p)
	}
	return procs, total, rows.Err()
}

// =========== Fee Schedule Repository ===========

type feeScheduleRepoPG struct{ pool *pgxpool.Pool }

func NewFeeScheduleRepoPG(pool *pgxpool.Pool) FeeScheduleRepository {
	return &feeScheduleRepoPG{pool: pool}
}

func (r *feeScheduleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *feeScheduleRepoPG) Create(ctx context.Context, e *FeeScheduleEntry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO fee_schedule (id, plan_identifier, procedure_code, fee)
		VALUES ($1, $2, $3, $4)`,
		e.ID, e.PlanIdentifier, e.ProcedureCode, e.Fee)
	return err
}

func (r *feeScheduleRepoPG) GetByPlanAndCode(ctx context.Context, planIdentifier, procedureCode string) (*FeeScheduleEntry, error) {
	var e FeeScheduleEntry
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, plan_identifier, procedure_code, fee, created_at
		FROM fee_schedule
		WHERE plan_identifier = $1 AND procedure_code = $2
		ORDER BY created_at
		LIMIT 1`,
		planIdentifier, procedureCode).
		Scan(&e.ID, &e.PlanIdentifier, &e.ProcedureCode, &e.Fee, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *feeScheduleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM fee_schedule WHERE id = $1`, id)
	return err
}

func (r *feeScheduleRepoPG) ListByPlan(ctx context.Context, planIdentifier string, limit, offset int) ([]*FeeScheduleEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM fee_schedule WHERE plan_identifier = $1`,
		planIdentifier).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, plan_identifier, procedure_code, fee, created_at
		FROM fee_schedule
		WHERE plan_identifier = $1
		ORDER BY procedure_code
		LIMIT $2 OFFSET $3`,
		planIdentifier, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*FeeScheduleEntry
	for rows.Next() {
		var e FeeScheduleEntry
		if err := rows.Scan(&e.ID, &e.PlanIdentifier, &e.ProcedureCode, &e.Fee, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}
