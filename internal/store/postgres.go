package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const collectionsSchema = `
CREATE TABLE IF NOT EXISTS collections (
	key        TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores each collection as one jsonb row. Update wraps the
// callback in a database transaction holding an advisory lock, so two
// service instances cannot interleave read-modify-write cycles against
// the same collections.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres connects and ensures the collections table exists
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(collectionsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure collections table: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// View runs fn against a single read snapshot
func (p *Postgres) View(ctx context.Context, fn func(tx *Tx) error) error {
	dbTx, err := p.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer dbTx.Rollback()

	tx := newTx(loaderFor(ctx, dbTx), true)
	return fn(tx)
}

// Update serializes writers via an advisory transaction lock and commits
// all staged collections in one database transaction.
func (p *Postgres) Update(ctx context.Context, fn func(tx *Tx) error) error {
	dbTx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Collections are read-modify-written as whole rows; a missing row
	// cannot be row-locked, so a single advisory lock covers the group.
	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext('collections'))"); err != nil {
		return fmt.Errorf("failed to acquire collections lock: %w", err)
	}

	tx := newTx(loaderFor(ctx, dbTx), false)
	if err := fn(tx); err != nil {
		return err
	}

	for key, data := range tx.staged {
		_, err := dbTx.ExecContext(ctx,
			`INSERT INTO collections (key, data, updated_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
			key, data)
		if err != nil {
			return fmt.Errorf("failed to write collection %s: %w", key, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collections: %w", err)
	}
	return nil
}

func loaderFor(ctx context.Context, dbTx *sqlx.Tx) func(key string) ([]byte, bool, error) {
	return func(key string) ([]byte, bool, error) {
		var data []byte
		err := dbTx.GetContext(ctx, &data, "SELECT data FROM collections WHERE key = $1", key)
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read collection %s: %w", key, err)
		}
		return data, true, nil
	}
}
