package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := NewRedisStore(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func storesUnderTest(t *testing.T) map[string]Store {
	redisStore, _ := setupRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New("admin", "admin", time.Now(), time.Hour)
			require.NoError(t, store.Create(ctx, s))

			got, err := store.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, "admin", got.Username)
			assert.False(t, got.Preferences.OnlyDailyOrders)

			updated, err := store.UpdatePreferences(ctx, s.ID, Preferences{OnlyDailyOrders: true})
			require.NoError(t, err)
			assert.True(t, updated.Preferences.OnlyDailyOrders)

			got, err = store.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.True(t, got.Preferences.OnlyDailyOrders)

			require.NoError(t, store.Delete(ctx, s.ID))
			_, err = store.Get(ctx, s.ID)
			require.ErrorIs(t, err, ErrNotFound)

			_, err = store.UpdatePreferences(ctx, "ses-missing", Preferences{})
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStoreExpiresSessions(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	s := New("operator", "operator", now, time.Minute)
	require.NoError(t, store.Create(context.Background(), s))

	now = now.Add(time.Minute)
	_, err := store.Get(context.Background(), s.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	store, mr := setupRedisStore(t)
	s := New("operator", "operator", time.Now(), 30*time.Minute)
	require.NoError(t, store.Create(context.Background(), s))

	ttl := mr.TTL(keyPrefix + s.ID)
	assert.Greater(t, ttl, 29*time.Minute)
	assert.LessOrEqual(t, ttl, 30*time.Minute)

	mr.FastForward(31 * time.Minute)
	_, err := store.Get(context.Background(), s.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRejectsExpiredSession(t *testing.T) {
	store, _ := setupRedisStore(t)
	s := New("operator", "operator", time.Now().Add(-2*time.Hour), time.Hour)
	require.ErrorIs(t, store.Create(context.Background(), s), ErrNotFound)
}
