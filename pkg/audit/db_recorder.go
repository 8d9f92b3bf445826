package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/confsys/sitecfg/pkg/schema"
)

// DBRecorder appends audit records to a PostgreSQL table. The table has no
// update or delete path in this module.
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder creates a database-backed recorder and ensures its table.
func NewDBRecorder(db *sql.DB) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	r := &DBRecorder{db: db}
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure config_audit table: %w", err)
	}
	return r, nil
}

// NewDBRecorderWithoutMigration wraps a connection whose table already
// exists. Used by tests.
func NewDBRecorderWithoutMigration(db *sql.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

func (r *DBRecorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS config_audit (
		id VARCHAR(36) PRIMARY KEY,
		category VARCHAR(20) NOT NULL,
		operation VARCHAR(20) NOT NULL,
		actor VARCHAR(255) NOT NULL,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		resulting_version BIGINT NOT NULL,
		diff JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_config_audit_category ON config_audit(category, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_config_audit_actor ON config_audit(actor, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_config_audit_timestamp ON config_audit(timestamp DESC);
	`
	_, err := r.db.Exec(query)
	return err
}

func (r *DBRecorder) Record(ctx context.Context, record *Record) error {
	var diffJSON []byte
	if record.Diff != nil {
		var err error
		diffJSON, err = json.Marshal(record.Diff)
		if err != nil {
			return fmt.Errorf("failed to marshal diff: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config_audit (id, category, operation, actor, timestamp, resulting_version, diff)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.Category.String(), record.Operation.String(),
		record.Actor, record.Timestamp, record.ResultingVersion, diffJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func (r *DBRecorder) Recent(ctx context.Context, filter Filter) ([]*Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT id, category, operation, actor, timestamp, resulting_version, diff
		FROM config_audit WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filter.Category != nil {
		query += fmt.Sprintf(" AND category = $%d", argCount)
		args = append(args, filter.Category.String())
		argCount++
	}
	if filter.Actor != "" {
		query += fmt.Sprintf(" AND actor = $%d", argCount)
		args = append(args, filter.Actor)
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY timestamp DESC, resulting_version DESC LIMIT $%d", argCount)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var category, operation string
		var diffJSON []byte
		if err := rows.Scan(&rec.ID, &category, &operation, &rec.Actor,
			&rec.Timestamp, &rec.ResultingVersion, &diffJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Category = schema.Category(category)
		rec.Operation = schema.Operation(operation)
		if len(diffJSON) > 0 {
			if err := json.Unmarshal(diffJSON, &rec.Diff); err != nil {
				return nil, fmt.Errorf("failed to unmarshal diff: %w", err)
			}
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
