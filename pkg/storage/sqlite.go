package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/autofill/pkg/types"
	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// SQLiteTier stores items in a single key/value table. It is an alternative
// backend for the local tier when payloads grow beyond what a single JSON
// document handles comfortably.
type SQLiteTier struct {
	name  string
	quota Quota
	db    *sql.DB
}

// OpenSQLiteTier opens (or creates) the database at path.
func OpenSQLiteTier(name, path string, quota Quota) (*SQLiteTier, error) {
	if path == "" {
		return nil, types.Validation("storage.open", "%s tier: db path is required", name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, types.StorageUnavailable("storage.open", err, "%s tier: failed to create directory", name)
	}

	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, types.StorageUnavailable("storage.open", err, "%s tier", name)
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, types.StorageUnavailable("storage.open", err, "%s tier: configure", name)
	}

	return &SQLiteTier{name: name, quota: quota, db: db}, nil
}

func configureDB(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
		`CREATE TABLE IF NOT EXISTS items (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

// Close closes the underlying database connection.
func (t *SQLiteTier) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Name returns the tier name.
func (t *SQLiteTier) Name() string {
	return t.name
}

// Get returns the value stored under key.
func (t *SQLiteTier) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var raw []byte
	err := t.db.QueryRowContext(ctx, "SELECT value FROM items WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, types.StorageUnavailable("storage.get", err, "%s tier: key %q", t.name, key)
	}
	return json.RawMessage(raw), true, nil
}

// Set writes all items in one transaction after checking the quota.
func (t *SQLiteTier) Set(ctx context.Context, items map[string]any) error {
	encoded, err := encodeItems(t.name, items)
	if err != nil {
		return err
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return types.StorageUnavailable("storage.set", err, "%s tier: begin", t.name)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(value)), 0) FROM items").Scan(&total); err != nil {
		return types.StorageUnavailable("storage.set", err, "%s tier: measure", t.name)
	}

	current := make(map[string]int64, len(encoded))
	for key := range encoded {
		var size int64
		err := tx.QueryRowContext(ctx, "SELECT LENGTH(value) FROM items WHERE key = ?", key).Scan(&size)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return types.StorageUnavailable("storage.set", err, "%s tier: measure %q", t.name, key)
		}
		current[key] = int64(len(key)) + size
	}

	if err := checkQuota(t.name, t.quota, current, total, encoded); err != nil {
		return err
	}

	for key, raw := range encoded {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO items (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, []byte(raw)); err != nil {
			return types.StorageUnavailable("storage.set", err, "%s tier: write %q", t.name, key)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.StorageUnavailable("storage.set", err, "%s tier: commit", t.name)
	}
	return nil
}

// Remove deletes keys, ignoring missing ones.
func (t *SQLiteTier) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	if _, err := t.db.ExecContext(ctx, "DELETE FROM items WHERE key IN ("+placeholders+")", args...); err != nil {
		return types.StorageUnavailable("storage.remove", err, "%s tier", t.name)
	}
	return nil
}

// Keys lists stored keys.
func (t *SQLiteTier) Keys(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT key FROM items")
	if err != nil {
		return nil, types.StorageUnavailable("storage.keys", err, "%s tier", t.name)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, types.StorageUnavailable("storage.keys", err, "%s tier", t.name)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, types.StorageUnavailable("storage.keys", err, "%s tier", t.name)
	}
	return keys, nil
}

// BytesInUse measures keys, or everything when keys is empty.
func (t *SQLiteTier) BytesInUse(ctx context.Context, keys ...string) (int64, error) {
	query := "SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(value)), 0) FROM items"
	var args []any
	if len(keys) > 0 {
		query += " WHERE key IN (" + strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",") + ")"
		for _, key := range keys {
			args = append(args, key)
		}
	}
	var total int64
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, types.StorageUnavailable("storage.bytes_in_use", err, "%s tier", t.name)
	}
	return total, nil
}
