// Package db provides a single-connection adapter over database/sql. Every
// statement of an ingest runs on the same physical connection, which is
// opened eagerly and released exactly once.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

//
// =======================
//  Testability seams
// =======================
//
// connCore mirrors the subset of *sql.Conn we use, except that PrepareContext
// returns a stmtCore so unit tests can inject light fakes.
//

// stmtCore is the minimal subset of *sql.Stmt we use.
type stmtCore interface {
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	Close() error
}

// connCore is the subset of a dedicated connection that Conn uses.
type connCore interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (stmtCore, error)
	Close() error
}

type realStmt struct{ s *sql.Stmt }

func (r realStmt) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	return r.s.ExecContext(ctx, args...)
}
func (r realStmt) Close() error { return r.s.Close() }

type realConn struct{ c *sql.Conn }

func (r realConn) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return r.c.ExecContext(ctx, q, args...)
}
func (r realConn) PrepareContext(ctx context.Context, q string) (stmtCore, error) {
	st, err := r.c.PrepareContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return realStmt{st}, nil
}
func (r realConn) Close() error { return r.c.Close() }

//
// ===================
//  Conn
// ===================
//

// Conn is one open database connection. It is not safe for concurrent use;
// an ingest issues its statements sequentially.
type Conn struct {
	core connCore
	pool interface{ Close() error }

	// The last prepared statement is kept while consecutive calls use the
	// same SQL text.
	stmtSQL string
	stmt    stmtCore

	closeOnce sync.Once
	closeErr  error
}

// Open opens a pool capped at one connection, checks out that connection and
// pings it. The returned Conn owns both.
func Open(ctx context.Context, driver, dsn string) (*Conn, error) {
	d, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	d.SetMaxOpenConns(1)
	d.SetMaxIdleConns(1)

	c, err := d.Conn(ctx)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if err := c.PingContext(ctx); err != nil {
		_ = c.Close()
		_ = d.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Conn{core: realConn{c: c}, pool: d}, nil
}

// Exec runs query. Without args the text is sent as-is; with args it runs
// through a prepared statement that is reused while the text is unchanged.
// It returns rows affected, or -1 when the driver cannot tell.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if len(args) == 0 {
		res, err := c.core.ExecContext(ctx, query)
		return rowsAffected(res, err)
	}

	st, err := c.prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	res, err := st.ExecContext(ctx, args...)
	return rowsAffected(res, err)
}

func (c *Conn) prepare(ctx context.Context, query string) (stmtCore, error) {
	if c.stmt != nil && c.stmtSQL == query {
		return c.stmt, nil
	}
	if c.stmt != nil {
		_ = c.stmt.Close()
		c.stmt, c.stmtSQL = nil, ""
	}
	st, err := c.core.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	c.stmt, c.stmtSQL = st, query
	return st, nil
}

// Close releases the cached statement, the connection and its pool. Later
// calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.stmt != nil {
			errs = append(errs, c.stmt.Close())
			c.stmt = nil
		}
		errs = append(errs, c.core.Close())
		if c.pool != nil {
			errs = append(errs, c.pool.Close())
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	if res == nil {
		return -1, nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}
