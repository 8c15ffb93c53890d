package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"salon-loyalty-api/internal/apperr"
)

// timeLayout is fixed width so that stored timestamps compare correctly as
// text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

type txKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	params := "_foreign_keys=1&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithinTx runs fn inside a transaction carried by the context passed to
// fn. Store calls made with that context join the transaction. A nested
// call reuses the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("begin transaction", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Store("commit transaction", err)
	}
	return nil
}

func (db *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.conn
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS businesses (
			id TEXT PRIMARY KEY,
			business_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			street TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			zip_code TEXT NOT NULL DEFAULT '',
			points_per_visit INTEGER NOT NULL DEFAULT 10,
			code_refresh_interval INTEGER NOT NULL DEFAULT 5,
			welcome_bonus INTEGER NOT NULL DEFAULT 50,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			phone TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
			available_points INTEGER NOT NULL DEFAULT 0 CHECK (available_points >= 0),
			total_visits INTEGER NOT NULL DEFAULT 0,
			last_visit TEXT,
			join_date TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			CHECK (available_points <= total_points)
		)`,
		`CREATE TABLE IF NOT EXISTS customer_rewards (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			reward_id TEXT NOT NULL,
			reward_title TEXT NOT NULL,
			redeemed_at TEXT NOT NULL,
			points_used INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rewards (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			points_required INTEGER NOT NULL CHECK (points_required >= 1),
			category TEXT NOT NULL DEFAULT 'discount',
			value TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			valid_from TEXT,
			valid_until TEXT,
			max_redemptions INTEGER,
			current_redemptions INTEGER NOT NULL DEFAULT 0,
			terms TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS visits (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			check_in_code TEXT NOT NULL,
			points_earned INTEGER NOT NULL,
			visit_date TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			is_valid INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS checkin_codes (
			id TEXT PRIMARY KEY,
			qr_code TEXT NOT NULL UNIQUE,
			digit_code TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			usage_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_customer_rewards_customer ON customer_rewards(customer_id, redeemed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_customer_rewards_redeemed_at ON customer_rewards(redeemed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rewards_active_points ON rewards(is_active, points_required)`,
		`CREATE INDEX IF NOT EXISTS idx_rewards_category ON rewards(category)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_customer_date ON visits(customer_id, visit_date)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_date ON visits(visit_date)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_code ON visits(check_in_code)`,
		`CREATE INDEX IF NOT EXISTS idx_checkin_codes_expires_at ON checkin_codes(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_total_points ON customers(total_points)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// storeErr maps unique violations to ErrConflict and everything else to
// ErrStoreFailure.
func storeErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}
	return apperr.Store(op, err)
}
