package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/role"
)

// PostgresStore implements Store on a profiles table for deployments that
// keep the profile store in Postgres instead of a document database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ConnectPostgres parses the URL, establishes a pool and verifies connectivity.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// InitSchema creates the profiles table if it does not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS profiles (
			uid        TEXT PRIMARY KEY,
			email      TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name  TEXT NOT NULL DEFAULT '',
			phone      TEXT NOT NULL DEFAULT '',
			birthdate  TEXT NOT NULL DEFAULT '',
			address    TEXT NOT NULL DEFAULT '',
			role       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}
	return nil
}

// Get retrieves a single profile by UID.
func (s *PostgresStore) Get(ctx context.Context, uid string) (*Profile, error) {
	query := `
		SELECT uid, email, first_name, last_name, phone, birthdate, address, role, created_at
		FROM profiles
		WHERE uid = $1`

	var p Profile
	var roleStr string
	err := s.pool.QueryRow(ctx, query, uid).Scan(
		&p.UID, &p.Email, &p.FirstName, &p.LastName,
		&p.Phone, &p.Birthdate, &p.Address, &roleStr, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	p.Role, err = role.Parse(roleStr)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", uid, err)
	}

	return &p, nil
}

// Put inserts a new profile row.
func (s *PostgresStore) Put(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (uid, email, first_name, last_name, phone, birthdate, address, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		p.UID, p.Email, p.FirstName, p.LastName,
		p.Phone, p.Birthdate, p.Address, p.Role.String(), p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateProfile
		}
		return fmt.Errorf("inserting profile: %w", err)
	}

	return nil
}

// Delete removes a profile row by UID.
func (s *PostgresStore) Delete(ctx context.Context, uid string) error {
	query := `DELETE FROM profiles WHERE uid = $1`

	result, err := s.pool.Exec(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// List retrieves all profiles ordered by creation time.
func (s *PostgresStore) List(ctx context.Context) ([]Profile, error) {
	query := `
		SELECT uid, email, first_name, last_name, phone, birthdate, address, role, created_at
		FROM profiles
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		var p Profile
		var roleStr string
		err := rows.Scan(
			&p.UID, &p.Email, &p.FirstName, &p.LastName,
			&p.Phone, &p.Birthdate, &p.Address, &roleStr, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning profile row: %w", err)
		}
		p.Role, err = role.Parse(roleStr)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.UID, err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profile rows: %w", err)
	}

	return profiles, nil
}
