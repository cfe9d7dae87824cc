package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Size limits of the two tiers. The sync ceiling mirrors the platform's
// per-item quota; the local ceilings are our own.
const (
	DefaultMaxFileSize     int64 = 10 * 1024 * 1024
	DefaultMaxTotalSize    int64 = 100 * 1024 * 1024
	DefaultSyncMaxItemSize int64 = 8 * 1024
)

// DefaultAllowedTypes are the MIME types accepted for upload.
var DefaultAllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// StorageConfig holds the storage ceilings and the upload allow-list.
type StorageConfig struct {
	MaxFileSize     int64 `yaml:"max_file_size" json:"max_file_size"`
	MaxTotalSize    int64 `yaml:"max_total_size" json:"max_total_size"`
	SyncMaxItemSize int64 `yaml:"sync_max_item_size" json:"sync_max_item_size"`

	// AllowedTypes are glob patterns over MIME types, e.g. "image/*"
	AllowedTypes []string `yaml:"allowed_types" json:"allowed_types"`

	// InspectPDF parses application/pdf uploads and rejects broken documents
	InspectPDF bool `yaml:"inspect_pdf" json:"inspect_pdf"`
}

// DefaultStorageConfig returns the stock limits.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		MaxFileSize:     DefaultMaxFileSize,
		MaxTotalSize:    DefaultMaxTotalSize,
		SyncMaxItemSize: DefaultSyncMaxItemSize,
		AllowedTypes:    append([]string(nil), DefaultAllowedTypes...),
		InspectPDF:      true,
	}
}

// Validate checks the limits and that every allow-list pattern compiles.
func (s StorageConfig) Validate() error {
	if s.MaxFileSize <= 0 {
		return fmt.Errorf("storage.max_file_size must be positive")
	}
	if s.MaxTotalSize < s.MaxFileSize {
		return fmt.Errorf("storage.max_total_size (%d) must be at least max_file_size (%d)", s.MaxTotalSize, s.MaxFileSize)
	}
	if s.SyncMaxItemSize <= 0 {
		return fmt.Errorf("storage.sync_max_item_size must be positive")
	}
	if len(s.AllowedTypes) == 0 {
		return fmt.Errorf("storage.allowed_types cannot be empty")
	}
	if _, err := s.TypeMatcher(); err != nil {
		return err
	}
	return nil
}

// TypeMatcher compiles the allow-list into a matcher.
func (s StorageConfig) TypeMatcher() (*TypeMatcher, error) {
	m := &TypeMatcher{}
	for _, pattern := range s.AllowedTypes {
		g, err := glob.Compile(strings.ToLower(strings.TrimSpace(pattern)), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed type pattern %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// TypeMatcher decides whether a MIME type is on the allow-list.
type TypeMatcher struct {
	globs []glob.Glob
}

// Allowed reports whether mimeType matches any pattern. Parameters such as
// "; charset=utf-8" are ignored.
func (m *TypeMatcher) Allowed(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	if base == "" {
		return false
	}
	for _, g := range m.globs {
		if g.Match(base) {
			return true
		}
	}
	return false
}
