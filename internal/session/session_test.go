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
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), "test:session:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func newSession(id string, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{ID: id, Email: "admin@example.com", CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestRedisStore_SaveGetDelete(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSession("abc", time.Hour)))
	assert.True(t, mr.Exists("test:session:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", got.Email)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSession("short", time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Ping(t *testing.T) {
	store, _ := setupRedisStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore("redis://"+addr, "")
	assert.Error(t, err)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not a url", "")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSession("one", time.Hour)))
	got, err := store.Get(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, "one", got.ID)

	require.NoError(t, store.Delete(ctx, "one"))
	_, err = store.Get(ctx, "one")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Session{ID: "x", ExpiresAt: now.Add(time.Minute)}))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := store.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, Session{ID: "y", ExpiresAt: now.Add(time.Hour)}))
	assert.NotContains(t, store.sessions, "x")
}
