// Package sqlite implements the configuration store on an embedded SQLite
// database, for single-node deployments without a PostgreSQL dependency.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/confsys/sitecfg/pkg/schema"
	"github.com/confsys/sitecfg/pkg/storage"
)

// Store persists one current configuration row per category in SQLite.
// Writes additionally serialize behind a process-level mutex because SQLite
// allows a single writer at a time.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex

	subMu       sync.RWMutex
	subscribers []storage.NotificationFunc
}

// New opens (or creates) a SQLite-backed store at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.ensureTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure site_config table: %w", err)
	}
	return store, nil
}

func (s *Store) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS site_config (
		category TEXT PRIMARY KEY,
		config_values TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) ReadCurrent(ctx context.Context, category schema.Category) (schema.Values, int64, error) {
	var raw string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT config_values, version FROM site_config WHERE category = ?`,
		category.String(),
	).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	var values schema.Values
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
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

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var previous schema.Values
	var prevRaw string
	err = s.db.QueryRowContext(ctx,
		`SELECT config_values FROM site_config WHERE category = ?`,
		category.String(),
	).Scan(&prevRaw)
	switch {
	case err == sql.ErrNoRows:
		if op == schema.OperationUpdate {
			op = schema.OperationCreate
		}
	case err != nil:
		return 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	default:
		if err := json.Unmarshal([]byte(prevRaw), &previous); err != nil {
			previous = nil
		}
	}

	var version int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO site_config (category, config_values, version, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (category) DO UPDATE
		SET config_values = excluded.config_values,
		    version = site_config.version + 1,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING version`,
		category.String(), string(data),
	).Scan(&version)
	if err != nil {
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

func (s *Store) Close() error {
	return s.db.Close()
}
