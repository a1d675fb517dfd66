package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insighthub/server/internal/database"
)

func openCacheDB(t *testing.T) *DatabaseStore {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite", DSN: "file:cachetest?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewDatabaseStore(db, time.Now)
}

func TestDatabaseStoreRoundTrip(t *testing.T) {
	store := openCacheDB(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "prefs:user-1", []byte(`{"keywords":["pricing"]}`), time.Minute))

	value, ok, err := store.Get(ctx, "prefs:user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"keywords":["pricing"]}`, string(value))

	require.NoError(t, store.Delete(ctx, "prefs:user-1"))
	_, ok, err = store.Get(ctx, "prefs:user-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreExpiryUsesInjectedClock(t *testing.T) {
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: "file:cacheclock?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewDatabaseStore(db, func() time.Time { return current })

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "prefs:user-2", []byte("x"), 30*time.Second))

	_, ok, err := store.Get(ctx, "prefs:user-2")
	require.NoError(t, err)
	require.True(t, ok)

	current = current.Add(31 * time.Second)
	_, ok, err = store.Get(ctx, "prefs:user-2")
	require.NoError(t, err)
	require.False(t, ok, "entry expired once the clock advances past the TTL")
}

func TestDatabaseStoreOverwrite(t *testing.T) {
	store := openCacheDB(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("one"), time.Minute))
	require.NoError(t, store.Set(ctx, "k", []byte("two"), time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", string(value))
}
