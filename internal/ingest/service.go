// Package ingest loads separated-value files into a database table in
// batches of multi-row INSERT statements.
//
// One call to Service.Ingest owns one source file and one database
// connection, both released before it returns. Nothing survives between
// calls, so a Service may run several ingests concurrently.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"svload/internal/config"
	"svload/internal/datasource"
	"svload/internal/datasource/file"
	"svload/internal/metrics"
	"svload/internal/parser/sv"
	"svload/internal/storage"
)

// Service runs ingests against one destination database.
type Service struct {
	conn     config.Connection
	progress io.Writer
	log      zerolog.Logger

	// Test hooks.
	openRepo   func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	openSource func(path string) datasource.Source
	newRunID   func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithProgress sets where the progress lines ("Processing ...",
// "Processed N rows.") go. The default is stdout.
func WithProgress(w io.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.progress = w
		}
	}
}

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New returns a Service for conn. No connection is opened until an ingest
// runs.
func New(conn config.Connection, opts ...Option) *Service {
	s := &Service{
		conn:       conn,
		progress:   os.Stdout,
		log:        zerolog.Nop(),
		openRepo:   storage.New,
		openSource: func(path string) datasource.Source { return file.NewLocal(path) },
		newRunID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest loads the file described by cfg into cfg.Table.
//
// The flow is: print "Processing <path>", open the connection, open the
// file, stream lines (skipping the first when IgnoreFirstRow is set) through
// the normalizer into batches, flush the final partial batch, print
// "Processed <n> rows.". The file and then the connection are closed on
// every path.
//
// By default the first rejected batch stops the ingest and is returned as a
// KindDBWrite error. With cfg.BestEffort the failure is logged and recorded
// in the Result, and the next batch proceeds. Configuration, connection, IO
// and cancellation errors always stop the ingest. The Result is meaningful
// in every case.
func (s *Service) Ingest(ctx context.Context, cfg config.Ingest) (res Result, err error) {
	start := time.Now()
	cfg = cfg.Normalized()
	res.RunID = s.newRunID()
	job := cfg.Table

	log := s.log.With().
		Str("run_id", res.RunID).
		Str("table", cfg.Table).
		Str("path", cfg.Path).
		Logger()

	defer func() {
		res.Duration = time.Since(start)
		if err != nil {
			res.Errors = append(res.Errors, err)
		}
		metrics.RecordStep(job, "ingest", err, res.Duration)
		metrics.RecordRow(job, metrics.KindRead, res.RowsRead)
		metrics.RecordRow(job, metrics.KindSubmitted, res.RowsSubmitted)
		metrics.RecordRow(job, metrics.KindInserted, res.RowsInserted)
		metrics.RecordRow(job, metrics.KindFailed, res.RowsFailed)
		metrics.RecordBatches(job, int64(res.Batches))

		if err != nil {
			log.Error().Err(err).Object("result", res).Msg("ingest failed")
			return
		}
		log.Info().Object("result", res).Msg("ingest finished")
	}()

	if err := config.FirstError(config.ValidateIngest(cfg, "")); err != nil {
		return res, &Error{Kind: KindConfig, Op: "validate", Err: err}
	}

	fmt.Fprintf(s.progress, "Processing %s\n", cfg.Path)

	connStart := time.Now()
	repo, err := s.openRepo(ctx, storage.Config{Conn: s.conn})
	metrics.RecordStep(job, "connect", err, time.Since(connStart))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, &Error{Kind: KindCanceled, Op: "connect", Err: ctxErr}
		}
		return res, &Error{Kind: KindConnection, Op: "connect", Err: err}
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close connection")
		}
	}()
	if d, ok := repo.(fmt.Stringer); ok {
		log.Debug().Str("connection", d.String()).Msg("connected")
	}

	rd, err := sv.Open(ctx, s.openSource(cfg.Path), cfg.Encoding)
	if err != nil {
		return res, openError(ctx, err)
	}
	defer func() {
		if cerr := rd.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close file")
		}
	}()

	var (
		norm = sv.NewNormalizer(cfg.Delimiter, cfg.EnforceDoubleQuotes, cfg.Statement == config.StatementLiteral)
		w    = storage.NewWriter(repo, cfg.Table, cfg.Statement)
		sum  = xxh3.New()
		acc  *storage.Accumulator
	)

	flush := func(ctx context.Context, rows [][]string) error {
		t0 := time.Now()
		n, werr := w.Write(ctx, rows)
		metrics.RecordStep(job, "write", werr, time.Since(t0))
		res.RowsInserted += n
		if werr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res.BatchesFailed++
		res.RowsFailed += int64(len(rows)) - n
		e := &Error{Kind: KindDBWrite, Op: "insert", Batch: acc.Batches(), Rows: len(rows), Err: werr}
		if !cfg.BestEffort {
			return e
		}
		log.Error().Err(werr).Int("batch", e.Batch).Int("rows", e.Rows).Msg("batch insert failed; continuing")
		res.Errors = append(res.Errors, e)
		return nil
	}

	acc, err = storage.NewAccumulator(cfg.BatchSize, s.progress, flush)
	if err != nil {
		return res, &Error{Kind: KindConfig, Op: "validate", Err: err}
	}
	defer func() {
		res.RowsSubmitted = acc.Submitted()
		res.Batches = acc.Batches()
		res.Checksum = sum.Sum64()
	}()

	skipHeader := cfg.IgnoreFirstRow
	for rd.Next() {
		if cerr := ctx.Err(); cerr != nil {
			return res, &Error{Kind: KindCanceled, Op: "read", Err: cerr}
		}
		line := rd.Line()
		if skipHeader {
			skipHeader = false
			continue
		}

		res.RowsRead++
		_, _ = sum.WriteString(line)
		_, _ = sum.Write(newline)

		if aerr := acc.Append(ctx, norm.Normalize(line)); aerr != nil {
			return res, batchError(aerr)
		}
	}
	if rerr := rd.Err(); rerr != nil {
		return res, &Error{Kind: KindIO, Reason: ReasonRead, Op: "read", Err: rerr}
	}

	if ferr := acc.Finish(ctx); ferr != nil {
		return res, batchError(ferr)
	}

	fmt.Fprintf(s.progress, "Processed %d rows.\n", acc.Submitted())
	return res, nil
}

var newline = []byte{'\n'}

// openError classifies a failure to open or decode the source.
func openError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return &Error{Kind: KindCanceled, Op: "open", Err: ctx.Err()}
	case errors.Is(err, sv.ErrUnknownEncoding):
		return &Error{Kind: KindIO, Reason: ReasonDecodeFailed, Op: "open", Err: err}
	default:
		return &Error{Kind: KindIO, Reason: ReasonNotFound, Op: "open", Err: err}
	}
}

// batchError passes DB write errors through and classifies context errors
// surfaced by the accumulator.
func batchError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCanceled, Op: "insert", Err: err}
	}
	return &Error{Kind: KindDBWrite, Op: "insert", Err: err}
}
