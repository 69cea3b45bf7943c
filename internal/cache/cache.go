// Package cache keeps registry responses in a local SQLite database so
// repeated venue and employment lookups skip the network.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Cache is a namespaced key/value store with per-entry expiry.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS registry_cache (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_registry_cache_expires_at ON registry_cache(expires_at);
`

// Open opens (creating if needed) the cache database at path in WAL mode.
func Open(ctx context.Context, path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "cache: migrate")
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get decodes the live entry for namespace/key into out. It reports false
// when there is no such entry or it has expired.
func (c *Cache) Get(ctx context.Context, namespace, key string, out any) (bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM registry_cache WHERE namespace = ? AND key = ? AND expires_at > ?`,
		namespace, key, c.now().Unix(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "cache: get %s/%s", namespace, key)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, eris.Wrapf(err, "cache: decode %s/%s", namespace, key)
	}
	return true, nil
}

// Set stores v under namespace/key for ttl, replacing any earlier entry.
func (c *Cache) Set(ctx context.Context, namespace, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s/%s", namespace, key)
	}
	now := c.now()
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO registry_cache (namespace, key, value, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		namespace, key, string(data), now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrapf(err, "cache: set %s/%s", namespace, key)
}

// Purge deletes expired entries and returns how many went.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM registry_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "cache: rows affected")
}
