// Package sqlite wires an embedded SQLite database into the storage factory.
// It accepts the same statements as the MySQL backend (SQLite understands
// backtick-quoted identifiers) and is used for local runs and end-to-end
// tests without a server.
package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"

	"svload/internal/config"
	"svload/internal/db"
	"svload/internal/storage"
)

// maxVariables is SQLITE_MAX_VARIABLE_NUMBER for the bundled engine.
const maxVariables = 32766

// newRepository is a test hook that points to the real connection opener.
// Tests may replace this variable to avoid touching the filesystem.
var newRepository = func(ctx context.Context, dsn string) (storage.Repository, error) {
	c, err := db.Open(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	// Enable foreign keys by default; ignore error if unsupported.
	_, _ = c.Exec(ctx, "PRAGMA foreign_keys = ON;")
	return c, nil
}

var (
	_ storage.Repository         = (*wrappedRepo)(nil)
	_ storage.PlaceholderLimiter = (*wrappedRepo)(nil)
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		dsn, err := DSN(cfg.Conn)
		if err != nil {
			return nil, err
		}
		r, err := newRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, desc: "sqlite://" + cfg.Conn.Database}, nil
	})
}

// DSN returns the database file path with any params appended as a query
// string, e.g. "load.db?_pragma=busy_timeout%285000%29".
func DSN(c config.Connection) (string, error) {
	path := strings.TrimSpace(c.Database)
	if path == "" {
		return "", fmt.Errorf("sqlite: database path must not be empty")
	}
	if len(c.Params) == 0 {
		return path, nil
	}
	q := url.Values{}
	for k, v := range c.Params {
		q.Set(k, v)
	}
	return path + "?" + q.Encode(), nil
}

type wrappedRepo struct {
	storage.Repository
	desc string
}

func (w *wrappedRepo) String() string { return w.desc }

// MaxPlaceholders implements storage.PlaceholderLimiter.
func (w *wrappedRepo) MaxPlaceholders() int { return maxVariables }
