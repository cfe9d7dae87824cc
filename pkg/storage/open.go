package storage

import (
	"github.com/entrhq/autofill/pkg/config"
)

// Tier names used in errors and logs.
const (
	SyncTierName  = "sync"
	LocalTierName = "local"
)

// Tiers groups the two opened tiers.
type Tiers struct {
	Sync  Tier
	Local Tier

	closers []func() error
}

// SyncQuota derives the synced-tier quota from the storage limits.
func SyncQuota(s config.StorageConfig) Quota {
	return Quota{MaxItemBytes: s.SyncMaxItemSize}
}

// LocalQuota derives the local-tier quota. A single item may hold the base64
// form of a maximum-size file plus its data URL prefix.
func LocalQuota(s config.StorageConfig) Quota {
	return Quota{
		MaxItemBytes:  EncodedSize(s.MaxFileSize) + 256,
		MaxTotalBytes: s.MaxTotalSize,
	}
}

// EncodedSize is the length of the base64 encoding of n bytes.
func EncodedSize(n int64) int64 {
	return (n + 2) / 3 * 4
}

// Open opens both tiers as configured.
func Open(cfg *config.Config) (*Tiers, error) {
	sync, err := OpenFileTier(SyncTierName, cfg.Tiers.SyncPath(), SyncQuota(cfg.Storage))
	if err != nil {
		return nil, err
	}

	tiers := &Tiers{Sync: sync}
	switch cfg.Tiers.LocalBackend {
	case config.BackendSQLite:
		local, err := OpenSQLiteTier(LocalTierName, cfg.Tiers.LocalPath(), LocalQuota(cfg.Storage))
		if err != nil {
			return nil, err
		}
		tiers.Local = local
		tiers.closers = append(tiers.closers, local.Close)
	default:
		local, err := OpenFileTier(LocalTierName, cfg.Tiers.LocalPath(), LocalQuota(cfg.Storage))
		if err != nil {
			return nil, err
		}
		tiers.Local = local
	}
	return tiers, nil
}

// Close releases backend resources.
func (t *Tiers) Close() error {
	var first error
	for _, c := range t.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
