package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confsys/sitecfg/pkg/schema"
	"github.com/confsys/sitecfg/pkg/storage"
)

func setupStoreTest(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestPostgresReadCurrent(t *testing.T) {
	store, mock := setupStoreTest(t)

	raw, err := json.Marshal(schema.Values{"site_name": "Acme"})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT config_values, version FROM site_config").
		WithArgs("site").
		WillReturnRows(sqlmock.NewRows([]string{"config_values", "version"}).AddRow(raw, int64(4)))

	values, version, err := store.ReadCurrent(context.Background(), schema.CategorySite)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
	assert.Equal(t, "Acme", values["site_name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadCurrentNotFound(t *testing.T) {
	store, mock := setupStoreTest(t)

	mock.ExpectQuery("SELECT config_values, version FROM site_config").
		WithArgs("seo").
		WillReturnRows(sqlmock.NewRows([]string{"config_values", "version"}))

	_, _, err := store.ReadCurrent(context.Background(), schema.CategorySEO)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresReadCurrentCorruptRow(t *testing.T) {
	store, mock := setupStoreTest(t)

	mock.ExpectQuery("SELECT config_values, version FROM site_config").
		WithArgs("site").
		WillReturnRows(sqlmock.NewRows([]string{"config_values", "version"}).AddRow([]byte("{not json"), int64(1)))

	_, _, err := store.ReadCurrent(context.Background(), schema.CategorySite)
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestPostgresWriteCurrentBumpsVersionAndNotifies(t *testing.T) {
	store, mock := setupStoreTest(t)

	prevRaw, err := json.Marshal(schema.Values{"site_name": "Old"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT config_values, version FROM site_config WHERE category = \\$1 FOR UPDATE").
		WithArgs("site").
		WillReturnRows(sqlmock.NewRows([]string{"config_values", "version"}).AddRow(prevRaw, int64(2)))
	mock.ExpectQuery("INSERT INTO site_config").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
	mock.ExpectCommit()

	var notified []storage.Notification
	store.Subscribe(func(n storage.Notification) { notified = append(notified, n) })

	version, err := store.WriteCurrent(context.Background(), schema.CategorySite, schema.Values{"site_name": "New"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	require.Len(t, notified, 1)
	assert.Equal(t, schema.OperationUpdate, notified[0].Operation)
	assert.Equal(t, "admin", notified[0].Actor)
	assert.Equal(t, "Old", notified[0].Previous["site_name"])
	assert.Equal(t, "New", notified[0].New["site_name"])
	assert.Equal(t, int64(3), notified[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFirstWriteIsCreate(t *testing.T) {
	store, mock := setupStoreTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT config_values, version FROM site_config WHERE category = \\$1 FOR UPDATE").
		WithArgs("theme").
		WillReturnRows(sqlmock.NewRows([]string{"config_values", "version"}))
	mock.ExpectQuery("INSERT INTO site_config").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))
	mock.ExpectCommit()

	var notified []storage.Notification
	store.Subscribe(func(n storage.Notification) { notified = append(notified, n) })

	version, err := store.WriteCurrent(context.Background(), schema.CategoryTheme, schema.Values{"primary_color": "#112233"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.Len(t, notified, 1)
	assert.Equal(t, schema.OperationCreate, notified[0].Operation)
	assert.Nil(t, notified[0].Previous)
}

func TestPostgresResetWritesDefaultsAsDelete(t *testing.T) {
	store, mock := setupStoreTest(t)

	prevRaw, err := json.Marshal(schema.Values{"maintenance_mode": true})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT config_values, version FROM site_config WHERE category = \\$1 FOR UPDATE").
		WithArgs("content").
		WillReturnRows(sqlmock.NewRows([]string{"config_values", "version"}).AddRow(prevRaw, int64(5)))
	mock.ExpectQuery("INSERT INTO site_config").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(6)))
	mock.ExpectCommit()

	var notified []storage.Notification
	store.Subscribe(func(n storage.Notification) { notified = append(notified, n) })

	version, err := store.Reset(context.Background(), schema.CategoryContent, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(6), version)

	require.Len(t, notified, 1)
	assert.Equal(t, schema.OperationDelete, notified[0].Operation)
	assert.Equal(t, schema.Defaults(schema.CategoryContent), notified[0].New)
}

func TestPostgresWriteFailureIsUnavailable(t *testing.T) {
	store, mock := setupStoreTest(t)

	mock.ExpectBegin().WillReturnError(assert.AnError)

	_, err := store.WriteCurrent(context.Background(), schema.CategorySite, schema.Values{}, "admin")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestPostgresRejectsUnknownCategory(t *testing.T) {
	store, _ := setupStoreTest(t)

	_, err := store.WriteCurrent(context.Background(), schema.Category("plugins"), schema.Values{}, "admin")
	assert.Error(t, err)
}
