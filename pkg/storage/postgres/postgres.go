// Package postgres implements the configuration store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/confsys/sitecfg/pkg/schema"
	"github.com/confsys/sitecfg/pkg/storage"
)

// Store persists one current configuration row per category. The version
// bump happens inside the upsert statement, so concurrent writes to the
// same category serialize on the row and never reuse a version.
type Store struct {
	db *sql.DB

	subMu       sync.RWMutex
	subscribers []storage.NotificationFunc
}

// New opens a PostgreSQL-backed store and ensures its table exists.
func New(config storage.Config) (*Store, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), config.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure site_config table: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an existing connection; the caller owns its lifecycle.
// The table is assumed to exist. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS site_config (
		category VARCHAR(20) PRIMARY KEY,
		config_values JSONB NOT NULL,
		version BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) ReadCurrent(ctx context.Context, category schema.Category) (schema.Values, int64, error) {
	var raw []byte
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT config_values, version FROM site_config WHERE category = $1`,
		category.String(),
	).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	var values schema.Values
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, 0, fmt.Errorf("%w for %s: %v", storage.ErrCorrupt, category, err)
	}
	return values, version, nil
}

func (s *Store) WriteCurrent(ctx context.Context, category schema.Category, values schema.Values, actor string) (int64, error) {
	return s.commit(ctx, category, values, actor, schema.OperationUpdate)
}

func (s *Store) Reset(ctx context.Context, category schema.Category, actor string) (int64, error) {
	return s.commit(ctx, category, schema.Defaults(category), actor, schema.OperationDelete)
}

func (s *Store) commit(ctx context.Context, category schema.Category, values schema.Values, actor string, op schema.Operation) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("invalid category %q", category)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal values: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer tx.Rollback()

	// Snapshot the previous row for the notification diff. FOR UPDATE
	// serializes racing writers on the row.
	var previous schema.Values
	var prevRaw []byte
	var prevVersion int64
	err = tx.QueryRowContext(ctx,
		`SELECT config_values, version FROM site_config WHERE category = $1 FOR UPDATE`,
		category.String(),
	).Scan(&prevRaw, &prevVersion)
	switch {
	case err == sql.ErrNoRows:
		if op == schema.OperationUpdate {
			op = schema.OperationCreate
		}
	case err != nil:
		return 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	default:
		if err := json.Unmarshal(prevRaw, &previous); err != nil {
			previous = nil
		}
	}

	var version int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO site_config (category, config_values, version, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (category) DO UPDATE
		SET config_values = EXCLUDED.config_values,
		    version = site_config.version + 1,
		    updated_at = NOW()
		RETURNING version`,
		category.String(), data,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	s.notify(storage.Notification{
		Category:  category,
		Operation: op,
		Actor:     actor,
		Previous:  previous,
		New:       values.Clone(),
		Version:   version,
		Committed: time.Now().UTC(),
	})
	return version, nil
}

func (s *Store) Subscribe(fn storage.NotificationFunc) {
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subMu.Unlock()
}

func (s *Store) notify(n storage.Notification) {
	s.subMu.RLock()
	subs := make([]storage.NotificationFunc, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(n)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying connection for health checks and the SQL audit
// recorder, which shares the same database.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
