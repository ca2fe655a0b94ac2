package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"svload/internal/config"
	"svload/internal/datasource"
	"svload/internal/storage"
)

//
// =====================================
//  FAKES
// =====================================
//

// fakeRepo records every statement and can reject chosen calls (1-based).
type fakeRepo struct {
	queries []string
	args    [][]any
	failOn  map[int]error
	closed  int
	onExec  func(call int)
}

func (f *fakeRepo) Exec(_ context.Context, q string, args ...any) (int64, error) {
	f.queries = append(f.queries, q)
	f.args = append(f.args, args)
	call := len(f.queries)
	if f.onExec != nil {
		f.onExec(call)
	}
	if err := f.failOn[call]; err != nil {
		return 0, err
	}
	return -1, nil
}

func (f *fakeRepo) Close() error { f.closed++; return nil }

// memSource serves a fixed body and tracks whether it was opened and closed.
type memSource struct {
	r       io.Reader
	openErr error
	opened  bool
	closed  bool
}

func (m *memSource) Open(context.Context) (io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened = true
	return memReadCloser{Reader: m.r, src: m}, nil
}

type memReadCloser struct {
	io.Reader
	src *memSource
}

func (c memReadCloser) Close() error { c.src.closed = true; return nil }

type harness struct {
	svc      *Service
	repo     *fakeRepo
	src      *memSource
	progress *bytes.Buffer
	repoErr  error
	dialed   bool
}

func newHarness(body string) *harness {
	h := &harness{
		repo:     &fakeRepo{},
		src:      &memSource{r: strings.NewReader(body)},
		progress: &bytes.Buffer{},
	}
	h.svc = New(config.Connection{Host: "h", Port: "3306", Database: "d", User: "u"}, WithProgress(h.progress))
	h.svc.newRunID = func() string { return "run-1" }
	h.svc.openRepo = func(context.Context, storage.Config) (storage.Repository, error) {
		h.dialed = true
		if h.repoErr != nil {
			return nil, h.repoErr
		}
		return h.repo, nil
	}
	h.svc.openSource = func(string) datasource.Source { return h.src }
	return h
}

func ingestCfg(delim string, header, quotes bool, batch int) config.Ingest {
	return config.Ingest{
		Table:               "t",
		Path:                "f",
		Encoding:            "UTF-8",
		Delimiter:           delim,
		IgnoreFirstRow:      header,
		EnforceDoubleQuotes: quotes,
		BatchSize:           batch,
	}
}

//
// =====================================
//  End-to-end scenarios
// =====================================
//

func TestIngest_MinimalTSVWithHeader(t *testing.T) {
	t.Parallel()

	h := newHarness("id\tname\n1\tAlice\n")
	res, err := h.svc.Ingest(context.Background(), ingestCfg("\t", true, true, 200000))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	want := "INSERT INTO `t` VALUES (\"1\",\"Alice\");"
	if len(h.repo.queries) != 1 || h.repo.queries[0] != want {
		t.Fatalf("queries = %q, want [%q]", h.repo.queries, want)
	}
	if got := h.progress.String(); got != "Processing f\nProcessing remaining 1\nProcessed 1 rows.\n" {
		t.Fatalf("progress = %q", got)
	}
	if res.RunID != "run-1" || res.RowsRead != 1 || res.RowsSubmitted != 1 || res.RowsInserted != 1 || res.Batches != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !res.OK() {
		t.Fatalf("result has errors: %v", res.Errors)
	}
}

func TestIngest_CSVWithoutHeaderTwoBatches(t *testing.T) {
	t.Parallel()

	h := newHarness("a,b\na,b\na,b\n")
	if _, err := h.svc.Ingest(context.Background(), ingestCfg(",", false, true, 2)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(h.repo.queries) != 2 {
		t.Fatalf("statements = %d, want 2", len(h.repo.queries))
	}
	if h.repo.queries[0] != "INSERT INTO `t` VALUES (\"a\",\"b\"),(\"a\",\"b\");" {
		t.Fatalf("first = %s", h.repo.queries[0])
	}
	if h.repo.queries[1] != "INSERT INTO `t` VALUES (\"a\",\"b\");" {
		t.Fatalf("second = %s", h.repo.queries[1])
	}
	want := "Processing f\nProcessing batch 2\nProcessing remaining 1\nProcessed 3 rows.\n"
	if got := h.progress.String(); got != want {
		t.Fatalf("progress = %q, want %q", got, want)
	}
}

func TestIngest_QuoteStrippingAndTrailingEmptyFields(t *testing.T) {
	t.Parallel()

	h := newHarness("\"x\",\"y\"\na,,\n")
	if _, err := h.svc.Ingest(context.Background(), ingestCfg(",", false, true, 10)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	want := "INSERT INTO `t` VALUES (\"x\",\"y\"),(\"a\",\"\",\"\");"
	if len(h.repo.queries) != 1 || h.repo.queries[0] != want {
		t.Fatalf("queries = %q, want %q", h.repo.queries, want)
	}
}

func TestIngest_HeaderOnly(t *testing.T) {
	t.Parallel()

	h := newHarness("id,name\n")
	res, err := h.svc.Ingest(context.Background(), ingestCfg(",", true, true, 10))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(h.repo.queries) != 0 {
		t.Fatalf("queries = %q, want none", h.repo.queries)
	}
	if got := h.progress.String(); got != "Processing f\nProcessed 0 rows.\n" {
		t.Fatalf("progress = %q", got)
	}
	if res.RowsRead != 0 || res.Batches != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestIngest_MissingFile(t *testing.T) {
	t.Parallel()

	h := newHarness("")
	h.src.openErr = fmt.Errorf("open /does/not/exist: %w", os.ErrNotExist)

	res, err := h.svc.Ingest(context.Background(), ingestCfg(",", false, true, 10))
	var ie *Error
	if !errors.As(err, &ie) || ie.Kind != KindIO || ie.Reason != ReasonNotFound {
		t.Fatalf("error = %v, want io(not_found)", err)
	}
	if !errors.Is(err, ErrIO) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error chain = %v", err)
	}
	if h.repo.closed != 1 {
		t.Fatalf("connection closed %d times, want 1", h.repo.closed)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("result errors = %v", res.Errors)
	}
	if strings.Contains(h.progress.String(), "Processed") {
		t.Fatalf("completion line printed after failure: %q", h.progress.String())
	}
}

//
// =====================================
//  Properties
// =====================================
//

// TestIngest_CountOrderAndBatchBound checks, for several line counts and
// batch sizes, that every line reaches the writer once, in file order, in
// batches of exactly B rows except possibly the last.
func TestIngest_CountOrderAndBatchBound(t *testing.T) {
	t.Parallel()

	for _, lines := range []int{0, 1, 2, 7, 10} {
		for _, batch := range []int{1, 3, 10} {
			for _, header := range []bool{false, true} {
				lines, batch, header := lines, batch, header
				t.Run(fmt.Sprintf("L%d_B%d_h%v", lines, batch, header), func(t *testing.T) {
					t.Parallel()

					var b strings.Builder
					for i := 1; i <= lines; i++ {
						fmt.Fprintf(&b, "%d\n", i)
					}
					h := newHarness(b.String())
					cfg := ingestCfg(",", header, false, batch)
					cfg.Statement = config.StatementPrepared

					res, err := h.svc.Ingest(context.Background(), cfg)
					if err != nil {
						t.Fatalf("Ingest: %v", err)
					}

					want := lines
					first := 1
					if header && lines > 0 {
						want--
						first = 2
					}
					if res.RowsSubmitted != int64(want) {
						t.Fatalf("submitted = %d, want %d", res.RowsSubmitted, want)
					}

					next := first
					for i, args := range h.repo.args {
						if len(args) > batch {
							t.Fatalf("batch %d has %d rows > %d", i, len(args), batch)
						}
						if i < len(h.repo.args)-1 && len(args) != batch {
							t.Fatalf("non-final batch %d has %d rows, want %d", i, len(args), batch)
						}
						for _, a := range args {
							if a.(string) != fmt.Sprint(next) {
								t.Fatalf("row %v out of order, want %d", a, next)
							}
							next++
						}
					}
					if next-first != want {
						t.Fatalf("rows written = %d, want %d", next-first, want)
					}
				})
			}
		}
	}
}

// TestIngest_ReleasesResources verifies the file and the connection are each
// closed exactly once on success and on every failure path.
func TestIngest_ReleasesResources(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name    string
		body    io.Reader
		setup   func(h *harness)
		cfg     func(c *config.Ingest)
		wantErr Kind
	}{
		{name: "success", body: strings.NewReader("1\n2\n")},
		{
			name:    "write_failure",
			body:    strings.NewReader("1\n2\n"),
			setup:   func(h *harness) { h.repo.failOn = map[int]error{1: boom} },
			wantErr: KindDBWrite,
		},
		{
			name:    "read_failure",
			body:    io.MultiReader(strings.NewReader("1\n"), iotest.ErrReader(boom)),
			wantErr: KindIO,
		},
		{
			name:    "decode_failure",
			body:    strings.NewReader("1\n"),
			cfg:     func(c *config.Ingest) { c.Encoding = "klingon" },
			wantErr: KindIO,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness("")
			h.src.r = tc.body
			if tc.setup != nil {
				tc.setup(h)
			}
			cfg := ingestCfg(",", false, true, 10)
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}

			_, err := h.svc.Ingest(context.Background(), cfg)
			if KindOf(err) != tc.wantErr {
				t.Fatalf("error = %v, want kind %q", err, tc.wantErr)
			}
			if h.repo.closed != 1 {
				t.Fatalf("connection closed %d times, want 1", h.repo.closed)
			}
			if h.src.opened && !h.src.closed {
				t.Fatalf("file opened but not closed")
			}
		})
	}
}

//
// =====================================
//  Error policy
// =====================================
//

func TestIngest_StrictStopsAtFirstFailedBatch(t *testing.T) {
	t.Parallel()

	dup := errors.New("Error 1062: Duplicate entry")
	h := newHarness("1\n2\n3\n4\n5\n")
	h.repo.failOn = map[int]error{2: dup}

	res, err := h.svc.Ingest(context.Background(), ingestCfg(",", false, true, 2))
	if !errors.Is(err, ErrDBWrite) || !errors.Is(err, dup) {
		t.Fatalf("error = %v, want db write wrapping %v", err, dup)
	}
	var ie *Error
	errors.As(err, &ie)
	if ie.Batch != 2 || ie.Rows != 2 {
		t.Fatalf("error batch=%d rows=%d, want 2/2", ie.Batch, ie.Rows)
	}
	if len(h.repo.queries) != 2 {
		t.Fatalf("statements = %d, want 2 (stop after failure)", len(h.repo.queries))
	}
	if res.RowsSubmitted != 4 || res.RowsInserted != 2 || res.RowsFailed != 2 || res.BatchesFailed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if strings.Contains(h.progress.String(), "Processed") {
		t.Fatalf("completion line printed after abort")
	}
}

func TestIngest_BestEffortContinues(t *testing.T) {
	t.Parallel()

	dup := errors.New("Error 1062: Duplicate entry")
	h := newHarness("1\n2\n3\n4\n5\n")
	h.repo.failOn = map[int]error{2: dup}

	cfg := ingestCfg(",", false, true, 2)
	cfg.BestEffort = true
	res, err := h.svc.Ingest(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(h.repo.queries) != 3 {
		t.Fatalf("statements = %d, want 3", len(h.repo.queries))
	}
	if res.RowsSubmitted != 5 || res.RowsInserted != 3 || res.RowsFailed != 2 || res.Batches != 3 || res.BatchesFailed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.OK() || len(res.Errors) != 1 || !errors.Is(res.Errors[0], dup) {
		t.Fatalf("result errors = %v", res.Errors)
	}
	if !strings.HasSuffix(h.progress.String(), "Processed 5 rows.\n") {
		t.Fatalf("progress = %q", h.progress.String())
	}
}

func TestIngest_ConnectionFailure(t *testing.T) {
	t.Parallel()

	refused := errors.New("dial tcp: connection refused")
	h := newHarness("1\n")
	h.repoErr = refused

	_, err := h.svc.Ingest(context.Background(), ingestCfg(",", false, true, 10))
	if !errors.Is(err, ErrConnection) || !errors.Is(err, refused) {
		t.Fatalf("error = %v", err)
	}
	if h.src.opened {
		t.Fatalf("file opened after connection failure")
	}
}

func TestIngest_InvalidConfig(t *testing.T) {
	t.Parallel()

	h := newHarness("1\n")
	cfg := ingestCfg(",", false, true, -1)
	_, err := h.svc.Ingest(context.Background(), cfg)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("error = %v, want config error", err)
	}
	if h.dialed || h.progress.Len() != 0 {
		t.Fatalf("nothing should happen on invalid config")
	}
}

func TestIngest_CanceledBetweenBatches(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness("1\n2\n3\n4\n5\n")
	h.repo.onExec = func(call int) {
		if call == 1 {
			cancel()
		}
	}

	res, err := h.svc.Ingest(ctx, ingestCfg(",", false, true, 2))
	if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want canceled", err)
	}
	if len(h.repo.queries) != 1 {
		t.Fatalf("statements = %d, want 1", len(h.repo.queries))
	}
	if res.RowsSubmitted != 2 {
		t.Fatalf("submitted = %d, want 2", res.RowsSubmitted)
	}
	if h.repo.closed != 1 || !h.src.closed {
		t.Fatalf("resources not released")
	}
}

//
// =====================================
//  Statement modes and extras
// =====================================
//

func TestIngest_PreparedStripsButDoesNotWrap(t *testing.T) {
	t.Parallel()

	h := newHarness("\"1\",O'Brien\n")
	cfg := ingestCfg(",", false, true, 10)
	cfg.Statement = config.StatementPrepared

	if _, err := h.svc.Ingest(context.Background(), cfg); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if h.repo.queries[0] != "INSERT INTO `t` VALUES (?,?)" {
		t.Fatalf("query = %s", h.repo.queries[0])
	}
	if got := fmt.Sprint(h.repo.args[0]); got != "[1 O'Brien]" {
		t.Fatalf("args = %s", got)
	}
}

func TestIngest_Checksum(t *testing.T) {
	t.Parallel()

	run := func(body string, header bool) uint64 {
		h := newHarness(body)
		res, err := h.svc.Ingest(context.Background(), ingestCfg(",", header, true, 10))
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		return res.Checksum
	}

	a := run("1,a\n2,b\n", false)
	if b := run("1,a\r\n2,b", false); a != b {
		t.Fatalf("line terminators changed the checksum: %x vs %x", a, b)
	}
	if c := run("h,h\n1,a\n2,b\n", true); a != c {
		t.Fatalf("header changed the checksum: %x vs %x", a, c)
	}
	if d := run("1,a\n2,c\n", false); a == d {
		t.Fatalf("different content, same checksum %x", a)
	}
}

func TestIngest_ConveniencePresets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call func(s *Service) (Result, error)
		body string
		want string
	}{
		{"tsv_header", func(s *Service) (Result, error) { return s.IngestTSVWithHeader(context.Background(), "t", "f") }, "h\th\n1\t2\n", "(\"1\",\"2\")"},
		{"tsv", func(s *Service) (Result, error) { return s.IngestTSVWithoutHeader(context.Background(), "t", "f") }, "1\t2\n", "(\"1\",\"2\")"},
		{"csv_header", func(s *Service) (Result, error) { return s.IngestCSVWithHeader(context.Background(), "t", "f") }, "h,h\n1,2\n", "(\"1\",\"2\")"},
		{"csv", func(s *Service) (Result, error) { return s.IngestCSVWithoutHeader(context.Background(), "t", "f") }, "1,2\n", "(\"1\",\"2\")"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(tc.body)
			res, err := tc.call(h.svc)
			if err != nil {
				t.Fatalf("call: %v", err)
			}
			if res.RowsSubmitted != 1 || len(h.repo.queries) != 1 {
				t.Fatalf("result = %+v, queries = %q", res, h.repo.queries)
			}
			if want := "INSERT INTO `t` VALUES " + tc.want + ";"; h.repo.queries[0] != want {
				t.Fatalf("query = %s, want %s", h.repo.queries[0], want)
			}
		})
	}
}

func TestIngest_RealFileThroughDefaultSource(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "people.csv")
	if err := os.WriteFile(p, []byte("id,name\n1,Alice\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := &fakeRepo{}
	var progress bytes.Buffer
	svc := New(config.Connection{}, WithProgress(&progress))
	svc.openRepo = func(context.Context, storage.Config) (storage.Repository, error) { return repo, nil }

	if _, err := svc.IngestCSVWithHeader(context.Background(), "people", p); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(repo.queries) != 1 || repo.queries[0] != "INSERT INTO `people` VALUES (\"1\",\"Alice\");" {
		t.Fatalf("queries = %q", repo.queries)
	}
	if !strings.HasPrefix(progress.String(), "Processing "+p+"\n") {
		t.Fatalf("progress = %q", progress.String())
	}
}
