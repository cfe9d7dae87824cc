package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/entrhq/autofill/pkg/storage"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	ctx := context.Background()
	g := NewGate(storage.NewMemoryTier("sync", storage.Quota{}))

	locked, err := g.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
	require.NoError(t, g.Check(ctx))

	err = g.Lock(ctx)
	assert.True(t, errors.Is(err, types.ErrValidation), "lock without password")

	err = g.SetPassword(ctx, "")
	assert.True(t, errors.Is(err, types.ErrValidation))

	require.NoError(t, g.SetPassword(ctx, "hunter2"))
	err = g.Check(ctx)
	assert.True(t, errors.Is(err, types.ErrProtected))

	err = g.Unlock(ctx, "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Contains(t, err.Error(), "incorrect password")

	require.NoError(t, g.Unlock(ctx, "hunter2"))
	require.NoError(t, g.Check(ctx))

	require.NoError(t, g.Lock(ctx))
	locked, err = g.Locked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, g.RemovePassword(ctx))
	locked, err = g.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.True(t, errors.Is(g.Lock(ctx), types.ErrValidation))
}

func TestUnlockWithoutPassword(t *testing.T) {
	ctx := context.Background()
	tier := storage.NewMemoryTier("sync", storage.Quota{})
	g := NewGate(tier)

	err := g.Unlock(ctx, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Contains(t, err.Error(), "no password set")

	keys, err := tier.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, g.SetPassword(ctx, "hunter2"))
	require.NoError(t, g.RemovePassword(ctx))
	assert.True(t, errors.Is(g.Unlock(ctx, ""), types.ErrValidation))
}
