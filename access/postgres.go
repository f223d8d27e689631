package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const adminCredentialName = "admin"

// PGStaffRepository implements StaffRepository backed by PostgreSQL.
type PGStaffRepository struct {
	pool *pgxpool.Pool
}

// NewPGStaffRepository creates a PostgreSQL-backed technician repository.
func NewPGStaffRepository(pool *pgxpool.Pool) *PGStaffRepository {
	return &PGStaffRepository{pool: pool}
}

func (r *PGStaffRepository) List(ctx context.Context) ([]Technician, error) {
	const selectSQL = `
		SELECT id, username, password_hash, name, email, phone
		FROM technicians
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("access: list technicians: %w", err)
	}
	defer rows.Close()

	techs := []Technician{}
	for rows.Next() {
		var t Technician
		if err := rows.Scan(&t.ID, &t.Username, &t.PasswordHash, &t.Name, &t.Email, &t.Phone); err != nil {
			return nil, fmt.Errorf("access: scan technician: %w", err)
		}
		techs = append(techs, t)
	}
	return techs, rows.Err()
}

func (r *PGStaffRepository) FindByUsername(ctx context.Context, username string) (Technician, error) {
	const selectSQL = `
		SELECT id, username, password_hash, name, email, phone
		FROM technicians
		WHERE username = $1
	`
	var t Technician
	err := r.pool.QueryRow(ctx, selectSQL, username).
		Scan(&t.ID, &t.Username, &t.PasswordHash, &t.Name, &t.Email, &t.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Technician{}, ErrNotFound
		}
		return Technician{}, fmt.Errorf("access: find technician: %w", err)
	}
	return t, nil
}

func (r *PGStaffRepository) Save(ctx context.Context, tech Technician) (Technician, error) {
	var (
		row pgx.Row
		err error
	)
	if tech.ID == 0 {
		const insertSQL = `
			INSERT INTO technicians (username, password_hash, name, email, phone)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, username, password_hash, name, email, phone
		`
		row = r.pool.QueryRow(ctx, insertSQL, tech.Username, tech.PasswordHash, tech.Name, tech.Email, tech.Phone)
	} else {
		const updateSQL = `
			UPDATE technicians
			SET username = $2, password_hash = $3, name = $4, email = $5, phone = $6
			WHERE id = $1
			RETURNING id, username, password_hash, name, email, phone
		`
		row = r.pool.QueryRow(ctx, updateSQL, tech.ID, tech.Username, tech.PasswordHash, tech.Name, tech.Email, tech.Phone)
	}

	var saved Technician
	err = row.Scan(&saved.ID, &saved.Username, &saved.PasswordHash, &saved.Name, &saved.Email, &saved.Phone)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Technician{}, ErrUsernameTaken
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return Technician{}, ErrNotFound
		}
		return Technician{}, fmt.Errorf("access: save technician: %w", err)
	}
	return saved, nil
}

func (r *PGStaffRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM technicians WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("access: delete technician: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PGCredentialStore keeps the admin credential hash in the
// app_credentials table.
type PGCredentialStore struct {
	pool *pgxpool.Pool
}

func NewPGCredentialStore(pool *pgxpool.Pool) *PGCredentialStore {
	return &PGCredentialStore{pool: pool}
}

func (s *PGCredentialStore) AdminHash(ctx context.Context) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM app_credentials WHERE name = $1`, adminCredentialName).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("access: load admin credential: %w", err)
	}
	return hash, nil
}

func (s *PGCredentialStore) SetAdminHash(ctx context.Context, hash string) error {
	const upsertSQL = `
		INSERT INTO app_credentials (name, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, upsertSQL, adminCredentialName, hash); err != nil {
		return fmt.Errorf("access: store admin credential: %w", err)
	}
	return nil
}
