// Package storage contains backend-agnostic contracts and utilities: the
// Repository interface, the backend factory, the batch accumulator and the
// INSERT statement writer.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"svload/internal/config"
)

// Repository is one open database connection.
type Repository interface {
	// Exec runs query. Without args the text is sent as-is; with args it is
	// prepared and the args are bound. It returns the rows affected, or -1
	// when the driver cannot tell.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Config is what a backend factory needs to open a Repository.
type Config struct {
	Kind string
	Conn config.Connection
}

// Factory opens a Repository for cfg. Opening is eager: a returned
// Repository holds a live connection.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind. Backends call it
// from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository with the factory registered for cfg.Kind (or the
// connection's kind when cfg.Kind is empty).
func New(ctx context.Context, cfg Config) (Repository, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = cfg.Conn.BackendKind()
	}
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", kind)
	}
	cfg.Kind = kind
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
