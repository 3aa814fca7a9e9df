package audit

import (
	"context"
	"fmt"

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

// PGSink persists audit events in the audit_events table. When the context
// carries a transaction the event commits or rolls back with the mutation
// that produced it.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink { return &PGSink{pool: pool} }

func (s *PGSink) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *PGSink) Record(ctx context.Context, evt Event) error {
	var actor, detail interface{}
	if evt.ActorID != "" {
		actor = evt.ActorID
	}
	if evt.Detail != "" {
		detail = evt.Detail
	}
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO audit_events (occurred_at, actor_id, action, account_id, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		evt.Timestamp, actor, evt.Action, evt.AccountID, detail)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}
