package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB represents a database connection
type DB struct {
	*sql.DB
	now func() time.Time
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new database connection
func New(params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return Wrap(db)
}

// Wrap uses an already opened connection and creates the tables if they don't exist
func Wrap(db *sql.DB) (*DB, error) {
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{DB: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS score_snapshots (
			id UUID PRIMARY KEY,
			ticker TEXT NOT NULL,
			kind TEXT NOT NULL,
			composite DOUBLE PRECISION NOT NULL,
			label TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_score_snapshots_ticker_kind
			ON score_snapshots (ticker, kind, created_at)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			user_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			added_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, ticker)
		)`,
		`CREATE TABLE IF NOT EXISTS user_subscriptions (
			user_id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			payment_id TEXT,
			stripe_subscription_id TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	return nil
}

// noRows maps sql.ErrNoRows onto a nil result
func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
