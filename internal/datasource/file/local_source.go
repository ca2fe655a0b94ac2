// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"svload/internal/datasource"
)

var _ datasource.Source = (*Local)(nil)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading and returns an io.ReadCloser.
//
// Behavior:
//   - If the context is already done, Open returns the context error without
//     touching the filesystem.
//   - Otherwise the file is opened and the kernel is told it will be read
//     sequentially (Linux only; elsewhere the hint is a no-op).
//   - Filesystem errors are wrapped with the path while still permitting
//     errors.Is checks (e.g. errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
