package storage

import (
	"context"
	"fmt"

	"svload/internal/config"
)

// Writer turns a batch of normalized rows into INSERT statements and runs
// them on a Repository.
type Writer struct {
	repo      Repository
	table     string
	mode      config.StatementMode
	maxParams int
}

// NewWriter returns a Writer for table. An empty mode means literal.
func NewWriter(repo Repository, table string, mode config.StatementMode) *Writer {
	if mode == "" {
		mode = config.StatementLiteral
	}
	maxParams := MaxPlaceholders
	if l, ok := repo.(PlaceholderLimiter); ok && l.MaxPlaceholders() > 0 {
		maxParams = min(maxParams, l.MaxPlaceholders())
	}
	return &Writer{repo: repo, table: table, mode: mode, maxParams: maxParams}
}

// PlaceholderLimiter is implemented by repositories whose engine accepts
// fewer bind parameters per statement than MaxPlaceholders.
type PlaceholderLimiter interface {
	MaxPlaceholders() int
}

// Write inserts rows and returns the number of rows the database reports as
// inserted. An empty batch issues no statement.
//
// In prepared mode a batch may span several statements; rows in statements
// that succeeded before a failure are counted and stay inserted.
func (w *Writer) Write(ctx context.Context, rows [][]string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	switch w.mode {
	case config.StatementLiteral:
		n, err := w.repo.Exec(ctx, BuildInsert(w.table, rows))
		if err != nil {
			return 0, err
		}
		return affected(n, len(rows)), nil

	case config.StatementPrepared:
		var total int64
		for _, st := range BuildPreparedInserts(w.table, rows, w.maxParams) {
			n, err := w.repo.Exec(ctx, st.Query, st.Args...)
			if err != nil {
				return total, err
			}
			total += affected(n, st.Rows)
		}
		return total, nil

	default:
		return 0, fmt.Errorf("unknown statement mode %q", w.mode)
	}
}

// affected falls back to the submitted row count when the driver cannot
// report rows affected.
func affected(n int64, submitted int) int64 {
	if n < 0 {
		return int64(submitted)
	}
	return n
}
