package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/entrhq/autofill/pkg/types"
)

const fileTierVersion = "1.0"

// FileTier is a MemoryTier persisted as one JSON document. Every write goes
// to a temp file which is then renamed over the original.
type FileTier struct {
	*MemoryTier
	path    string
	version string
}

type fileTierDocument struct {
	Version string                     `json:"version"`
	Items   map[string]json.RawMessage `json:"items"`
}

// OpenFileTier loads the tier at path, creating the parent directory. A
// missing file is an empty tier.
func OpenFileTier(name, path string, quota Quota) (*FileTier, error) {
	if path == "" {
		return nil, types.Validation("storage.open", "%s tier: path is required", name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, types.StorageUnavailable("storage.open", err, "%s tier: failed to create directory", name)
	}

	t := &FileTier{
		MemoryTier: NewMemoryTier(name, quota),
		path:       path,
		version:    fileTierVersion,
	}
	if err := t.load(); err != nil {
		return nil, types.StorageUnavailable("storage.open", err, "%s tier", name)
	}
	t.MemoryTier.persist = t.save
	return t, nil
}

// Path returns the backing file.
func (t *FileTier) Path() string {
	return t.path
}

func (t *FileTier) load() error {
	file, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open tier file: %w", err)
	}
	defer file.Close()

	var doc fileTierDocument
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode tier file: %w", err)
	}
	if doc.Version != "" {
		t.version = doc.Version
	}
	if doc.Items != nil {
		t.MemoryTier.data = doc.Items
	}
	return nil
}

func (t *FileTier) save(items map[string]json.RawMessage) error {
	tempPath := t.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return types.StorageUnavailable("storage.save", err, "%s tier: failed to create temp file", t.name)
	}

	// Items stay compact so that sizes measured after a reload match the
	// sizes measured at write time.
	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(fileTierDocument{Version: t.version, Items: items}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return types.StorageUnavailable("storage.save", err, "%s tier: failed to encode", t.name)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return types.StorageUnavailable("storage.save", err, "%s tier: failed to close temp file", t.name)
	}

	if err := os.Rename(tempPath, t.path); err != nil {
		os.Remove(tempPath)
		return types.StorageUnavailable("storage.save", err, "%s tier: failed to rename temp file", t.name)
	}
	return nil
}
