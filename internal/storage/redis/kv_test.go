package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/gomarketplace/internal/storage"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*KV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewKV(client, ttl), mr
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestKV_Get_Success(t *testing.T) {
	kv, mr := setupTestRedis(t, 0)

	require.NoError(t, mr.Set(storage.DefaultKey, `[{"id":"A","quantity":1}]`))

	got, err := kv.Get(context.Background(), storage.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"A","quantity":1}]`, got)
}

func TestKV_Get_NotFound(t *testing.T) {
	kv, _ := setupTestRedis(t, 0)

	got, err := kv.Get(context.Background(), storage.DefaultKey)
	assert.Empty(t, got)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKV_Get_ServerError(t *testing.T) {
	kv, mr := setupTestRedis(t, 0)
	mr.SetError("LOADING")

	_, err := kv.Get(context.Background(), storage.DefaultKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "redis get")
}

// ---------------------------------------------------------------------------
// Set
// ---------------------------------------------------------------------------

func TestKV_Set_Overwrites(t *testing.T) {
	kv, mr := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, storage.DefaultKey, `[{"id":"A"}]`))
	require.NoError(t, kv.Set(ctx, storage.DefaultKey, `[{"id":"B"}]`))

	raw, err := mr.Get(storage.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"B"}]`, raw)
	assert.Zero(t, mr.TTL(storage.DefaultKey))
}

func TestKV_Set_TTL(t *testing.T) {
	kv, mr := setupTestRedis(t, 24*time.Hour)

	require.NoError(t, kv.Set(context.Background(), storage.DefaultKey, `[]`))

	ttl := mr.TTL(storage.DefaultKey)
	assert.True(t, ttl > 23*time.Hour, "expected TTL > 23h, got %v", ttl)
	assert.True(t, ttl <= 24*time.Hour, "expected TTL <= 24h, got %v", ttl)
}

func TestKV_Set_ServerError(t *testing.T) {
	kv, mr := setupTestRedis(t, 0)
	mr.SetError("READONLY")

	err := kv.Set(context.Background(), storage.DefaultKey, `[]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set")
}

func TestKV_Ping(t *testing.T) {
	kv, mr := setupTestRedis(t, 0)

	assert.NoError(t, kv.Ping(context.Background()))

	mr.Close()
	assert.Error(t, kv.Ping(context.Background()))
}
