package ingest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Result summarizes one ingest. It is returned on success and on failure;
// on failure it reflects the work done up to the point of the abort.
type Result struct {
	RunID string

	// RowsRead counts data lines read from the file (the header excluded).
	RowsRead int64
	// RowsSubmitted counts rows handed to the writer, failed batches
	// included. It is the number printed in "Processed N rows.".
	RowsSubmitted int64
	// RowsInserted counts rows the database acknowledged.
	RowsInserted int64
	// RowsFailed counts rows in batches (or statements) that were rejected.
	RowsFailed int64

	Batches       int
	BatchesFailed int

	// Errors holds every failure encountered, including batch failures that
	// best-effort mode carried on past.
	Errors []error

	// Checksum is the XXH3-64 of the submitted data lines, each followed by
	// "\n", as decoded from the file. Equal files yield equal checksums.
	Checksum uint64

	Duration time.Duration
}

// OK reports whether the ingest finished without any error.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// MarshalZerologObject logs the result as structured fields.
func (r Result) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run_id", r.RunID).
		Int64("rows_read", r.RowsRead).
		Int64("rows_submitted", r.RowsSubmitted).
		Int64("rows_inserted", r.RowsInserted).
		Int64("rows_failed", r.RowsFailed).
		Int("batches", r.Batches).
		Int("batches_failed", r.BatchesFailed).
		Int("errors", len(r.Errors)).
		Str("checksum", fmt.Sprintf("%016x", r.Checksum)).
		Dur("duration", r.Duration)
}
