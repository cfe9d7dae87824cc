// Package storage provides the key/value tiers that back profiles and files.
//
// Two tiers exist, mirroring the browser platform:
//
//   - the synced tier: small, with a per-item ceiling (8 KiB by default);
//     holds the profile map and the lock flags
//   - the local tier: larger, with a per-item and an aggregate ceiling;
//     holds the file registry and one key per file payload
//
// Every tier enforces its own quota on write. Callers are still expected to
// pre-check with ItemSize so a predictable overflow never reaches the tier.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/entrhq/autofill/pkg/types"
)

// ErrQuotaExceeded is wrapped by tier errors raised for quota violations.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Tier is a JSON key/value store with quota enforcement.
type Tier interface {
	// Name identifies the tier in errors and logs ("sync", "local").
	Name() string

	// Get returns the raw JSON stored under key and whether it exists.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set writes all items or none of them.
	Set(ctx context.Context, items map[string]any) error

	// Remove deletes keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error

	// Keys lists every stored key in no particular order.
	Keys(ctx context.Context) ([]string, error)

	// BytesInUse measures the given keys, or the whole tier when none are given.
	BytesInUse(ctx context.Context, keys ...string) (int64, error)
}

// Quota bounds a tier. Zero means unlimited.
type Quota struct {
	MaxItemBytes  int64
	MaxTotalBytes int64
}

// ItemSize is the quota cost of storing value under key: the key length plus
// the length of the value's JSON encoding.
func ItemSize(key string, value any) (int64, error) {
	raw, err := encode(value)
	if err != nil {
		return 0, err
	}
	return int64(len(key) + len(raw)), nil
}

// GetJSON decodes the value stored under key into a T.
func GetJSON[T any](ctx context.Context, tier Tier, key string) (T, bool, error) {
	var out T
	raw, ok, err := tier.Get(ctx, key)
	if err != nil || !ok {
		return out, ok, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, true, types.StorageUnavailable("storage.get", err, "%s tier: corrupt value under %q", tier.Name(), key)
	}
	return out, true, nil
}

// IsQuotaExceeded reports whether err was caused by a quota violation.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

func encode(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return raw, nil
}

func encodeItems(tier string, items map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(items))
	for key, value := range items {
		if key == "" {
			return nil, types.Validation("storage.set", "%s tier: empty key", tier)
		}
		raw, err := encode(value)
		if err != nil {
			return nil, types.StorageUnavailable("storage.set", err, "%s tier: key %q", tier, key)
		}
		out[key] = raw
	}
	return out, nil
}

// checkQuota validates a write of encoded items against q given the sizes of
// what is already stored. current maps key to size for existing entries.
func checkQuota(tier string, q Quota, current map[string]int64, total int64, items map[string]json.RawMessage) error {
	for key, raw := range items {
		size := int64(len(key) + len(raw))
		if q.MaxItemBytes > 0 && size > q.MaxItemBytes {
			return types.StorageUnavailable("storage.set", ErrQuotaExceeded,
				"%s tier: item %q is %d bytes, limit is %d", tier, key, size, q.MaxItemBytes)
		}
		total += size - current[key]
	}
	if q.MaxTotalBytes > 0 && total > q.MaxTotalBytes {
		return types.StorageUnavailable("storage.set", ErrQuotaExceeded,
			"%s tier: %d bytes in use after write, limit is %d", tier, total, q.MaxTotalBytes)
	}
	return nil
}

func ctxErr(ctx context.Context, tier, op string) error {
	if err := ctx.Err(); err != nil {
		return types.StorageUnavailable(op, err, "%s tier", tier)
	}
	return nil
}
