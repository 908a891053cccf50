package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/gomarketplace/internal/storage"
)

func TestKV_GetMissing(t *testing.T) {
	kv := New()

	_, err := kv.Get(context.Background(), storage.DefaultKey)

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKV_SetThenGet(t *testing.T) {
	kv := New()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, storage.DefaultKey, `[{"id":"A"}]`))
	require.NoError(t, kv.Set(ctx, storage.DefaultKey, `[]`))

	got, err := kv.Get(ctx, storage.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)
}

func TestKV_CanceledContext(t *testing.T) {
	kv := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, kv.Set(ctx, "k", "v"), context.Canceled)
	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
