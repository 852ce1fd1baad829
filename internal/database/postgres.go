// internal/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore keeps every key as one row of kv_entries.
type PostgresStore struct {
	DB *sqlx.DB
}

// NewPostgresStore creates a new PostgreSQL connection and ensures the table exists
func NewPostgresStore(ctx context.Context, connectionString string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{DB: db}
	if err := store.InitializeTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("Successfully connected to PostgreSQL!")
	return store, nil
}

func (p *PostgresStore) InitializeTables(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv_entries table: %v", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := p.DB.GetContext(ctx, &value, `SELECT value FROM kv_entries WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newKeyNotFoundError(key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %v", key, err)
	}
	return []byte(value), nil
}

func (p *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("failed to write key %s: %v", key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.DB.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %v", key, err)
	}
	return nil
}

// Close closes the database connection
func (p *PostgresStore) Close(ctx context.Context) error {
	log.Println("Closing PostgreSQL connection...")
	return p.DB.Close()
}
