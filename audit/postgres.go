package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedger implements Ledger backed by PostgreSQL.
type PGLedger struct {
	pool *pgxpool.Pool
}

// NewPGLedger creates a PostgreSQL-backed audit ledger.
func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{pool: pool}
}

func (l *PGLedger) Append(ctx context.Context, action, details, actor string) error {
	const insertSQL = `
		INSERT INTO audit_logs (action, details, actor)
		VALUES ($1, $2, $3)
	`
	if _, err := l.pool.Exec(ctx, insertSQL, action, details, actor); err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

func (l *PGLedger) List(ctx context.Context) ([]Entry, error) {
	const selectSQL = `
		SELECT id, action, details, actor, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
	`
	rows, err := l.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Details, &e.Actor, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
