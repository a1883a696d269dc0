package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/flowgen/internal/flowgen/kv"
)

func TestStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := kv.New()
	defer s.Close()

	require.NoError(t, s.Set(ctx, "x", float64(42)))

	v, ok, err := s.Get(ctx, "x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(42), v.Interface())

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Exists(t *testing.T) {
	ctx := context.Background()
	s := kv.New()
	defer s.Close()

	ok, err := s.Exists(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "x", "hi"))

	ok, err = s.Exists(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := kv.New()
	defer s.Close()

	require.NoError(t, s.Set(ctx, "x", "hi"))
	require.NoError(t, s.Delete(ctx, "x"))

	_, ok, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_AppendOnlyOnArray(t *testing.T) {
	ctx := context.Background()
	s := kv.New()
	defer s.Close()

	// Append to a non-existent key is a no-op, not an error.
	require.NoError(t, s.Append(ctx, "metrics", "first"))
	_, ok, err := s.Get(ctx, "metrics")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetArray(ctx, "metrics", []any{}))
	require.NoError(t, s.Append(ctx, "metrics", "first"))
	require.NoError(t, s.Append(ctx, "metrics", "second"))

	v, ok, err := s.Get(ctx, "metrics")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"first", "second"}, v.Interface())

	// Appending to a scalar is a no-op.
	require.NoError(t, s.Set(ctx, "scalar", "x"))
	require.NoError(t, s.Append(ctx, "scalar", "y"))
	v, ok, err = s.Get(ctx, "scalar")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", v.Interface())
}

func TestStore_ListKeysAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := kv.New()
	defer s.Close()

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	env, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, env)
}

func TestStore_FIFOPerSender(t *testing.T) {
	ctx := context.Background()
	s := kv.New()
	defer s.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Set(ctx, "counter", i))
	}

	v, ok, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 49, v.Interface())
}

func TestStore_CloseDrainsThenExits(t *testing.T) {
	s := kv.New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "x", "y"))
	s.Close()
	// Close must not panic or hang (verified by the test finishing at all).
}
