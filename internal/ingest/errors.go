package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies an ingest failure.
type Kind string

const (
	// KindConfig means the ingest settings are invalid; nothing was opened.
	KindConfig Kind = "config"
	// KindConnection means the database connection could not be opened.
	KindConnection Kind = "connection"
	// KindIO means the source file could not be opened, decoded or read.
	KindIO Kind = "io"
	// KindDBWrite means a batch INSERT was rejected.
	KindDBWrite Kind = "db_write"
	// KindCanceled means the context was canceled between lines or batches.
	KindCanceled Kind = "canceled"
)

// IOReason refines KindIO.
type IOReason string

const (
	ReasonNotFound     IOReason = "not_found"
	ReasonDecodeFailed IOReason = "decode_failed"
	ReasonRead         IOReason = "read"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrConfig     = errors.New("invalid ingest config")
	ErrConnection = errors.New("connection error")
	ErrIO         = errors.New("io error")
	ErrDBWrite    = errors.New("db write error")
	ErrCanceled   = errors.New("ingest canceled")
)

// Error is returned by Service.Ingest and collected in Result.Errors.
type Error struct {
	Kind   Kind
	Reason IOReason // set for KindIO only
	Op     string   // e.g. "connect", "open", "read", "insert"

	// Batch is the 1-based batch number and Rows its size, for KindDBWrite.
	Batch int
	Rows  int

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIO:
		return fmt.Sprintf("ingest %s: io(%s): %v", e.Op, e.Reason, e.Err)
	case KindDBWrite:
		return fmt.Sprintf("ingest %s: batch %d (%d rows): %v", e.Op, e.Batch, e.Rows, e.Err)
	default:
		return fmt.Sprintf("ingest %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfig:
		return e.Kind == KindConfig
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrIO:
		return e.Kind == KindIO
	case ErrDBWrite:
		return e.Kind == KindDBWrite
	case ErrCanceled:
		return e.Kind == KindCanceled
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
