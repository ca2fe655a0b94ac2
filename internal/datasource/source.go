// Package datasource defines where ingest input bytes come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a stream of raw input bytes. Callers own the returned
// ReadCloser and must close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
