package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryTier keeps items in memory. FileTier builds on it by persisting every
// committed write.
type MemoryTier struct {
	name  string
	quota Quota
	data  map[string]json.RawMessage
	mu    sync.RWMutex

	// persist, when set, must durably store the full next state before it is
	// committed to memory.
	persist func(map[string]json.RawMessage) error
}

// NewMemoryTier creates an empty in-memory tier.
func NewMemoryTier(name string, quota Quota) *MemoryTier {
	return &MemoryTier{
		name:  name,
		quota: quota,
		data:  make(map[string]json.RawMessage),
	}
}

// Name returns the tier name.
func (t *MemoryTier) Name() string {
	return t.name
}

// Get returns a copy of the value under key.
func (t *MemoryTier) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := ctxErr(ctx, t.name, "storage.get"); err != nil {
		return nil, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	raw, ok := t.data[key]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), raw...), true, nil
}

// Set writes all items atomically after checking the quota.
func (t *MemoryTier) Set(ctx context.Context, items map[string]any) error {
	if err := ctxErr(ctx, t.name, "storage.set"); err != nil {
		return err
	}
	encoded, err := encodeItems(t.name, items)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := make(map[string]int64, len(encoded))
	for key := range encoded {
		if raw, ok := t.data[key]; ok {
			current[key] = int64(len(key) + len(raw))
		}
	}
	if err := checkQuota(t.name, t.quota, current, t.totalLocked(), encoded); err != nil {
		return err
	}

	next := t.cloneLocked()
	for key, raw := range encoded {
		next[key] = raw
	}
	return t.commitLocked(next)
}

// Remove deletes keys, ignoring missing ones.
func (t *MemoryTier) Remove(ctx context.Context, keys ...string) error {
	if err := ctxErr(ctx, t.name, "storage.remove"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.cloneLocked()
	changed := false
	for _, key := range keys {
		if _, ok := next[key]; ok {
			delete(next, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return t.commitLocked(next)
}

// Keys lists stored keys.
func (t *MemoryTier) Keys(ctx context.Context) ([]string, error) {
	if err := ctxErr(ctx, t.name, "storage.keys"); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.data))
	for key := range t.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// BytesInUse measures keys, or everything when keys is empty.
func (t *MemoryTier) BytesInUse(ctx context.Context, keys ...string) (int64, error) {
	if err := ctxErr(ctx, t.name, "storage.bytes_in_use"); err != nil {
		return 0, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(keys) == 0 {
		return t.totalLocked(), nil
	}
	var total int64
	for _, key := range keys {
		if raw, ok := t.data[key]; ok {
			total += int64(len(key) + len(raw))
		}
	}
	return total, nil
}

func (t *MemoryTier) totalLocked() int64 {
	var total int64
	for key, raw := range t.data {
		total += int64(len(key) + len(raw))
	}
	return total
}

func (t *MemoryTier) cloneLocked() map[string]json.RawMessage {
	next := make(map[string]json.RawMessage, len(t.data)+1)
	for key, raw := range t.data {
		next[key] = raw
	}
	return next
}

func (t *MemoryTier) commitLocked(next map[string]json.RawMessage) error {
	if t.persist != nil {
		if err := t.persist(next); err != nil {
			return err
		}
	}
	t.data = next
	return nil
}
