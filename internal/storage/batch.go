package storage

import (
	"context"
	"fmt"
	"io"
)

// maxPrealloc caps the row buffer allocated up front so that an absurd batch
// size does not reserve memory before any row arrives.
const maxPrealloc = 1 << 20

// FlushFunc receives one batch. rows is only valid for the duration of the
// call; the buffer is reused for the next batch.
type FlushFunc func(ctx context.Context, rows [][]string) error

// Accumulator collects rows and hands them to a FlushFunc in batches of
// exactly batchSize rows, plus one final shorter batch from Finish.
//
// Progress lines are written to the progress writer:
//
//	Processing batch <rows submitted so far>
//	Processing remaining <rows in the final batch>
//
// Flushes are synchronous; Append does not return until the flush does. The
// buffer is emptied after every flush, successful or not, so a row is never
// sent twice.
type Accumulator struct {
	batchSize int
	buf       [][]string
	flush     FlushFunc
	progress  io.Writer

	submitted int64
	batches   int
}

// NewAccumulator returns an Accumulator. A nil progress writer discards
// progress lines.
func NewAccumulator(batchSize int, progress io.Writer, flush FlushFunc) (*Accumulator, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batchSize must be > 0")
	}
	if flush == nil {
		return nil, fmt.Errorf("flush must not be nil")
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Accumulator{
		batchSize: batchSize,
		buf:       make([][]string, 0, min(batchSize, maxPrealloc)),
		flush:     flush,
		progress:  progress,
	}, nil
}

// Append buffers row and flushes when the buffer reaches the batch size.
// The returned error is the flush error or the context error; the row is
// buffered either way.
func (a *Accumulator) Append(ctx context.Context, row []string) error {
	a.buf = append(a.buf, row)
	if len(a.buf) < a.batchSize {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.submitted += int64(len(a.buf))
	fmt.Fprintf(a.progress, "Processing batch %d\n", a.submitted)
	return a.drain(ctx)
}

// Finish flushes any buffered rows as a final, possibly short, batch.
func (a *Accumulator) Finish(ctx context.Context) error {
	if len(a.buf) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fmt.Fprintf(a.progress, "Processing remaining %d\n", len(a.buf))
	a.submitted += int64(len(a.buf))
	return a.drain(ctx)
}

func (a *Accumulator) drain(ctx context.Context) error {
	a.batches++
	err := a.flush(ctx, a.buf)

	// Drop row references but keep the backing array for the next batch.
	clear(a.buf)
	a.buf = a.buf[:0]
	return err
}

// Submitted returns the number of rows handed to the flush function so far.
func (a *Accumulator) Submitted() int64 { return a.submitted }

// Batches returns the number of flush calls made so far.
func (a *Accumulator) Batches() int { return a.batches }

// Pending returns the number of buffered, not yet flushed rows.
func (a *Accumulator) Pending() int { return len(a.buf) }
