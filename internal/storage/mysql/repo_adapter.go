package mysql

import (
	"context"

	"svload/internal/db"
	"svload/internal/storage"
)

// driverName is the database/sql driver registered by go-sql-driver/mysql.
const driverName = "mysql"

// newRepository is a test hook that points to the real connection opener.
// Tests may replace this variable to avoid real DB connections.
var newRepository = func(ctx context.Context, dsn string) (storage.Repository, error) {
	return db.Open(ctx, driverName, dsn)
}

var _ storage.Repository = (*wrappedRepo)(nil)

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, DSN(cfg.Conn))
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, desc: Describe(cfg.Conn)}, nil
	})
}

// wrappedRepo adds a log-safe description to the connection.
type wrappedRepo struct {
	storage.Repository
	desc string
}

// String returns the connection descriptor with the password masked.
func (w *wrappedRepo) String() string { return w.desc }
