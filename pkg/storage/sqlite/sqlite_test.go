package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confsys/sitecfg/pkg/schema"
	"github.com/confsys/sitecfg/pkg/storage"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "sitecfg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReadCurrentNotFound(t *testing.T) {
	store := setupStore(t)

	_, _, err := store.ReadCurrent(context.Background(), schema.CategorySite)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	values := schema.Defaults(schema.CategorySite)
	values["site_name"] = "Acme"

	version, err := store.WriteCurrent(ctx, schema.CategorySite, values, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	got, gotVersion, err := store.ReadCurrent(ctx, schema.CategorySite)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gotVersion)
	assert.Equal(t, "Acme", got["site_name"])
}

func TestVersionIncrementsPerCategory(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		version, err := store.WriteCurrent(ctx, schema.CategorySite, schema.Defaults(schema.CategorySite), "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(i), version)
	}

	// Another category starts its own sequence.
	version, err := store.WriteCurrent(ctx, schema.CategorySEO, schema.Defaults(schema.CategorySEO), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestWriteNotifiesSubscribers(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var notifications []storage.Notification
	store.Subscribe(func(n storage.Notification) {
		notifications = append(notifications, n)
	})

	values := schema.Defaults(schema.CategoryTheme)
	_, err := store.WriteCurrent(ctx, schema.CategoryTheme, values, "alice")
	require.NoError(t, err)

	require.Len(t, notifications, 1)
	assert.Equal(t, schema.OperationCreate, notifications[0].Operation)
	assert.Equal(t, "alice", notifications[0].Actor)
	assert.Nil(t, notifications[0].Previous)
	assert.Equal(t, int64(1), notifications[0].Version)

	values["primary_color"] = "#112233"
	_, err = store.WriteCurrent(ctx, schema.CategoryTheme, values, "bob")
	require.NoError(t, err)

	require.Len(t, notifications, 2)
	assert.Equal(t, schema.OperationUpdate, notifications[1].Operation)
	assert.NotNil(t, notifications[1].Previous)
	assert.Equal(t, int64(2), notifications[1].Version)
}

func TestResetRestoresDefaults(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	values := schema.Defaults(schema.CategoryContent)
	values["maintenance_mode"] = true
	values["maintenance_message"] = "down for upgrades"
	_, err := store.WriteCurrent(ctx, schema.CategoryContent, values, "alice")
	require.NoError(t, err)

	var last storage.Notification
	store.Subscribe(func(n storage.Notification) { last = n })

	version, err := store.Reset(ctx, schema.CategoryContent, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, schema.OperationDelete, last.Operation)

	got, gotVersion, err := store.ReadCurrent(ctx, schema.CategoryContent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gotVersion)
	assert.Equal(t, schema.Defaults(schema.CategoryContent)["maintenance_mode"], got["maintenance_mode"])
}

func TestReadCurrentCorruptRow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO site_config (category, config_values, version) VALUES (?, ?, ?)`,
		"site", "{not json", 1,
	)
	require.NoError(t, err)

	_, _, err = store.ReadCurrent(ctx, schema.CategorySite)
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestInvalidCategoryRejected(t *testing.T) {
	store := setupStore(t)

	_, err := store.WriteCurrent(context.Background(), schema.Category("bogus"), schema.Values{}, "alice")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	store := setupStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
