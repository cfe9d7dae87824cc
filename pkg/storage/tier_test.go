package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tierFactories lets every behavioural test run against each backend.
func tierFactories(t *testing.T) map[string]func(q Quota) Tier {
	t.Helper()
	return map[string]func(q Quota) Tier{
		"memory": func(q Quota) Tier {
			return NewMemoryTier("test", q)
		},
		"file": func(q Quota) Tier {
			tier, err := OpenFileTier("test", filepath.Join(t.TempDir(), "tier.json"), q)
			require.NoError(t, err)
			return tier
		},
		"sqlite": func(q Quota) Tier {
			tier, err := OpenSQLiteTier("test", filepath.Join(t.TempDir(), "tier.db"), q)
			require.NoError(t, err)
			t.Cleanup(func() { _ = tier.Close() })
			return tier
		},
	}
}

func TestTierSetGet(t *testing.T) {
	ctx := context.Background()
	for name, open := range tierFactories(t) {
		t.Run(name, func(t *testing.T) {
			tier := open(Quota{})

			require.NoError(t, tier.Set(ctx, map[string]any{
				"profiles": map[string]string{"default": "x"},
				"isLocked": true,
			}))

			raw, ok, err := tier.Get(ctx, "isLocked")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, "true", string(raw))

			profiles, ok, err := GetJSON[map[string]string](ctx, tier, "profiles")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "x", profiles["default"])

			_, ok, err = tier.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTierRemoveIgnoresMissing(t *testing.T) {
	ctx := context.Background()
	for name, open := range tierFactories(t) {
		t.Run(name, func(t *testing.T) {
			tier := open(Quota{})
			require.NoError(t, tier.Set(ctx, map[string]any{"a": 1, "b": 2}))

			require.NoError(t, tier.Remove(ctx, "a", "nope"))
			require.NoError(t, tier.Remove(ctx, "a"))

			keys, err := tier.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, keys)
		})
	}
}

func TestTierQuota(t *testing.T) {
	ctx := context.Background()
	for name, open := range tierFactories(t) {
		t.Run(name+"/item ceiling", func(t *testing.T) {
			tier := open(Quota{MaxItemBytes: 16})

			err := tier.Set(ctx, map[string]any{"k": "0123456789abcdef"})
			require.Error(t, err)
			assert.True(t, IsQuotaExceeded(err))
			assert.True(t, errors.Is(err, types.ErrStorageUnavailable))

			keys, err := tier.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})

		t.Run(name+"/total ceiling", func(t *testing.T) {
			tier := open(Quota{MaxTotalBytes: 20})
			require.NoError(t, tier.Set(ctx, map[string]any{"a": "12345678"})) // 1 + 10

			err := tier.Set(ctx, map[string]any{"b": "12345678"})
			require.Error(t, err)
			assert.True(t, IsQuotaExceeded(err))

			// Overwriting an existing key only counts the difference.
			require.NoError(t, tier.Set(ctx, map[string]any{"a": "1234567890abcd"}))

			used, err := tier.BytesInUse(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(17), used)
		})

		t.Run(name+"/batch is all or nothing", func(t *testing.T) {
			tier := open(Quota{MaxItemBytes: 8})
			err := tier.Set(ctx, map[string]any{"ok": 1, "big": "0123456789"})
			require.Error(t, err)

			_, ok, err := tier.Get(ctx, "ok")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTierBytesInUse(t *testing.T) {
	ctx := context.Background()
	for name, open := range tierFactories(t) {
		t.Run(name, func(t *testing.T) {
			tier := open(Quota{})
			require.NoError(t, tier.Set(ctx, map[string]any{"ab": "xy", "c": 10}))

			size, err := ItemSize("ab", "xy")
			require.NoError(t, err)
			assert.Equal(t, int64(6), size)

			used, err := tier.BytesInUse(ctx, "ab")
			require.NoError(t, err)
			assert.Equal(t, size, used)

			used, err = tier.BytesInUse(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(6+3), used)
		})
	}
}

func TestTierRejectsEmptyKey(t *testing.T) {
	tier := NewMemoryTier("test", Quota{})
	err := tier.Set(context.Background(), map[string]any{"": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestTierCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tier := NewMemoryTier("test", Quota{})
	_, _, err := tier.Get(ctx, "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStorageUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGetJSONCorruptValue(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier("test", Quota{})
	require.NoError(t, tier.Set(ctx, map[string]any{"n": "not a number"}))

	_, ok, err := GetJSON[int](ctx, tier, "n")
	require.Error(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.KindStorageUnavailable, types.KindOf(err))
}

func TestFileTierPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sync.json")

	tier, err := OpenFileTier("sync", path, Quota{MaxTotalBytes: 1024})
	require.NoError(t, err)
	assert.Equal(t, path, tier.Path())

	require.NoError(t, tier.Set(ctx, map[string]any{
		"profiles": map[string]any{"default": map[string]any{"fields": []string{"<a&b>"}}},
		"password": "pw",
	}))
	require.NoError(t, tier.Remove(ctx, "password"))
	before, err := tier.BytesInUse(ctx)
	require.NoError(t, err)

	reopened, err := OpenFileTier("sync", path, Quota{MaxTotalBytes: 1024})
	require.NoError(t, err)

	keys, err := reopened.Keys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"profiles"}, keys)

	after, err := reopened.BytesInUse(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileTierCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")
	require.NoError(t, writeFile(path, "{not json"))

	_, err := OpenFileTier("sync", path, Quota{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStorageUnavailable))
}

func TestSQLiteTierPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.db")

	tier, err := OpenSQLiteTier("local", path, Quota{})
	require.NoError(t, err)
	require.NoError(t, tier.Set(ctx, map[string]any{"file_1": "data:application/pdf;base64,AAAA"}))
	require.NoError(t, tier.Close())
	require.NoError(t, tier.Close())

	reopened, err := OpenSQLiteTier("local", path, Quota{})
	require.NoError(t, err)
	defer reopened.Close()

	blob, ok, err := GetJSON[string](ctx, reopened, "file_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "data:application/pdf;base64,AAAA", blob)
}

func TestEncodedSize(t *testing.T) {
	assert.Equal(t, int64(0), EncodedSize(0))
	assert.Equal(t, int64(4), EncodedSize(1))
	assert.Equal(t, int64(4), EncodedSize(3))
	assert.Equal(t, int64(8), EncodedSize(4))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
