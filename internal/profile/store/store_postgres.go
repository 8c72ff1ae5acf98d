package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
	"profilereg/pkg/platform/sentinel"
	txcontext "profilereg/pkg/platform/tx"
)

// Schema creates the entries table. Deposits are NUMERIC so the full uint64
// balance range round-trips.
const Schema = `
CREATE TABLE IF NOT EXISTS profile_entries (
	account_id UUID PRIMARY KEY,
	name       BYTEA NOT NULL,
	age        SMALLINT NOT NULL CHECK (age BETWEEN 0 AND 255),
	title      BYTEA NOT NULL,
	deposit    NUMERIC(20, 0) NOT NULL CHECK (deposit >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists entries in PostgreSQL. When the context carries a
// transaction (see pkg/platform/tx) every statement runs inside it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate profile_entries: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, account id.AccountID) (*models.Entry, bool, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT name, age, title, deposit FROM profile_entries WHERE account_id = $1`,
		account.String(),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify("get profile entry", err)
	}
	return entry, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, account id.AccountID, entry *models.Entry) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO profile_entries (account_id, name, age, title, deposit, updated_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, now())
		 ON CONFLICT (account_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   age = EXCLUDED.age,
		   title = EXCLUDED.title,
		   deposit = EXCLUDED.deposit,
		   updated_at = EXCLUDED.updated_at`,
		account.String(),
		nonNil(entry.Profile.Name),
		int16(entry.Profile.Age),
		nonNil(entry.Profile.Title),
		strconv.FormatUint(uint64(entry.Deposit), 10),
	)
	if err != nil {
		return classify("put profile entry", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, account id.AccountID) (*models.Entry, bool, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`DELETE FROM profile_entries WHERE account_id = $1 RETURNING name, age, title, deposit`,
		account.String(),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify("remove profile entry", err)
	}
	return entry, true, nil
}

func scanEntry(row *sql.Row) (*models.Entry, error) {
	var (
		name, title []byte
		age         int16
		deposit     string
	)
	if err := row.Scan(&name, &age, &title, &deposit); err != nil {
		return nil, err
	}
	amount, err := strconv.ParseUint(deposit, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse deposit %q: %w", deposit, err)
	}
	return &models.Entry{
		Profile: models.Profile{Name: name, Age: uint8(age), Title: title},
		Deposit: id.Balance(amount),
	}, nil
}

// classify maps serialization failures to sentinel.ErrConflict so callers can
// retry; everything else is wrapped as-is. Both lib/pq and pgx error types
// are understood since either can back the *sql.DB.
func classify(op string, err error) error {
	switch sqlState(err) {
	case "40001", "40P01":
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrConflict, err)
	case "08000", "08003", "08006", "57P01":
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
