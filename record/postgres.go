package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, contract, nom, cin, phone, phone2, phone_verified, phone_update_count,
	last_verified_at, last_modified_by, last_modified_at, created_at`

// PGRepository implements Repository backed by PostgreSQL. Contract
// uniqueness is enforced by a unique index on lower(contract).
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a PostgreSQL-backed record repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) FindByContract(ctx context.Context, contract string) (Record, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM users WHERE lower(contract) = lower(trim($1))`, recordColumns)

	rec, err := scanRecord(r.pool.QueryRow(ctx, selectSQL, contract))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("record: find by contract: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (Record, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, recordColumns)

	rec, err := scanRecord(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("record: find by id: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) ListAll(ctx context.Context) ([]Record, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM users ORDER BY id`, recordColumns)

	rows, err := r.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("record: list: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("record: scan: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PGRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO users (contract, nom, cin, phone, phone2, phone_verified, phone_update_count,
			last_verified_at, last_modified_by, last_modified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING %s`, recordColumns)

	saved, err := scanRecord(r.pool.QueryRow(ctx, insertSQL,
		rec.Contract, rec.Nom, rec.CIN, rec.Phone, rec.Phone2, rec.PhoneVerified, rec.PhoneUpdateCount,
		rec.LastVerifiedAt, rec.LastModifiedBy, rec.LastModifiedAt, rec.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrContractTaken
		}
		return Record{}, fmt.Errorf("record: insert: %w", err)
	}
	return saved, nil
}

func (r *PGRepository) Update(ctx context.Context, rec Record) (Record, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE users
		SET contract = $2, nom = $3, cin = $4, phone = $5, phone2 = $6, phone_verified = $7,
			phone_update_count = $8, last_verified_at = $9, last_modified_by = $10, last_modified_at = $11
		WHERE id = $1
		RETURNING %s`, recordColumns)

	saved, err := scanRecord(r.pool.QueryRow(ctx, updateSQL,
		rec.ID, rec.Contract, rec.Nom, rec.CIN, rec.Phone, rec.Phone2, rec.PhoneVerified,
		rec.PhoneUpdateCount, rec.LastVerifiedAt, rec.LastModifiedBy, rec.LastModifiedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrContractTaken
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("record: update: %w", err)
	}
	return saved, nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("record: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.Contract,
		&rec.Nom,
		&rec.CIN,
		&rec.Phone,
		&rec.Phone2,
		&rec.PhoneVerified,
		&rec.PhoneUpdateCount,
		&rec.LastVerifiedAt,
		&rec.LastModifiedBy,
		&rec.LastModifiedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
