package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confsys/sitecfg/pkg/schema"
)

func setupDBRecorder(t *testing.T) (*DBRecorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDBRecorderWithoutMigration(db), mock
}

func TestNewDBRecorderEnsuresTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS config_audit").WillReturnResult(sqlmock.NewResult(0, 0))

	recorder, err := NewDBRecorder(db)
	require.NoError(t, err)
	assert.NotNil(t, recorder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDBRecorderRequiresDB(t *testing.T) {
	_, err := NewDBRecorder(nil)
	assert.Error(t, err)
}

func TestDBRecorderRecord(t *testing.T) {
	recorder, mock := setupDBRecorder(t)

	record := NewRecord(schema.CategorySite, schema.OperationUpdate, "admin",
		schema.Values{"site_name": "Old"}, schema.Values{"site_name": "New"}, 3)

	diffJSON, err := json.Marshal(record.Diff)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO config_audit").
		WithArgs(record.ID, "site", "update", "admin", record.Timestamp, int64(3), diffJSON).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, recorder.Record(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBRecorderRecordWithoutDiff(t *testing.T) {
	recorder, mock := setupDBRecorder(t)

	record := NewRecord(schema.CategorySite, schema.OperationUpdate, "admin",
		schema.Values{"site_name": "Same"}, schema.Values{"site_name": "Same"}, 4)
	require.Nil(t, record.Diff)

	mock.ExpectExec("INSERT INTO config_audit").
		WithArgs(record.ID, "site", "update", "admin", record.Timestamp, int64(4), []byte(nil)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, recorder.Record(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBRecorderRecent(t *testing.T) {
	recorder, mock := setupDBRecorder(t)

	diffJSON, err := json.Marshal(&Diff{
		Before: schema.Values{"site_name": "Old"},
		After:  schema.Values{"site_name": "New"},
	})
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "category", "operation", "actor", "timestamp", "resulting_version", "diff"}).
		AddRow("id-2", "site", "update", "admin", time.Now().UTC(), int64(2), diffJSON).
		AddRow("id-1", "site", "create", "admin", time.Now().UTC().Add(-time.Minute), int64(1), []byte(nil))

	mock.ExpectQuery("SELECT (.+) FROM config_audit").
		WithArgs(DefaultLimit).
		WillReturnRows(rows)

	records, err := recorder.Recent(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "id-2", records[0].ID)
	assert.Equal(t, schema.OperationUpdate, records[0].Operation)
	require.NotNil(t, records[0].Diff)
	assert.Equal(t, "New", records[0].Diff.After["site_name"])
	assert.Nil(t, records[1].Diff)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBRecorderRecentWithFilters(t *testing.T) {
	recorder, mock := setupDBRecorder(t)

	rows := sqlmock.NewRows([]string{"id", "category", "operation", "actor", "timestamp", "resulting_version", "diff"}).
		AddRow("id-1", "seo", "update", "bob", time.Now().UTC(), int64(1), []byte(nil))

	mock.ExpectQuery("SELECT (.+) FROM config_audit WHERE 1=1 AND category = \\$1 AND actor = \\$2").
		WithArgs("seo", "bob", 10).
		WillReturnRows(rows)

	seo := schema.CategorySEO
	records, err := recorder.Recent(context.Background(), Filter{Category: &seo, Actor: "bob", Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, schema.CategorySEO, records[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}
