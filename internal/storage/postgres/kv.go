package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/gomarketplace/internal/storage"
	"github.com/utafrali/gomarketplace/pkg/database"
)

// DBTX is the subset of *pgxpool.Pool used by KV.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const schema = `
	CREATE TABLE IF NOT EXISTS cart_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// KV implements storage.KV on a single PostgreSQL table.
type KV struct {
	db DBTX
}

// NewKV creates a PostgreSQL-backed store.
func NewKV(db DBTX) *KV {
	return &KV{db: db}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *KV) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create cart_kv table: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM cart_kv WHERE key = $1`

	ctx, end := database.TraceCall(ctx, "postgresql", "SELECT", query)

	var value string
	err := s.db.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		end(nil)
		return "", storage.ErrNotFound
	}
	end(err)
	if err != nil {
		return "", fmt.Errorf("get cart_kv %s: %w", key, err)
	}

	return value, nil
}

// Set upserts value under key.
func (s *KV) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO cart_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	ctx, end := database.TraceCall(ctx, "postgresql", "INSERT", query)

	_, err := s.db.Exec(ctx, query, key, value)
	end(err)
	if err != nil {
		return fmt.Errorf("set cart_kv %s: %w", key, err)
	}

	return nil
}

// Ping checks the database connection.
func (s *KV) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
