package sv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/transform"

	"svload/internal/datasource"
)

// readBufferSize is the initial buffer of the line reader. Longer lines are
// still read whole; the buffer only bounds a single read call.
const readBufferSize = 64 * 1024

// Reader yields the lines of a decoded text stream with their terminators
// ("\n" or "\r\n") removed. Use it like bufio.Scanner:
//
//	for r.Next() {
//	    use(r.Line())
//	}
//	if err := r.Err(); err != nil { ... }
//
// A final line without a terminator is returned; a trailing terminator does
// not produce an extra empty line. Lines have no length limit.
type Reader struct {
	closer io.Closer
	br     *bufio.Reader

	line string
	n    int
	err  error
	eof  bool
}

// NewReader decodes r with the named encoding. The returned Reader does not
// close r.
func NewReader(r io.Reader, encodingLabel string) (*Reader, error) {
	enc, err := LookupEncoding(encodingLabel)
	if err != nil {
		return nil, err
	}
	return &Reader{
		br: bufio.NewReaderSize(transform.NewReader(r, enc.NewDecoder()), readBufferSize),
	}, nil
}

// Open resolves the encoding, opens src and returns a Reader that owns the
// opened stream; Close releases it. The encoding is checked before the
// source is opened so a bad label never leaks a handle.
func Open(ctx context.Context, src datasource.Source, encodingLabel string) (*Reader, error) {
	enc, err := LookupEncoding(encodingLabel)
	if err != nil {
		return nil, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &Reader{
		closer: rc,
		br:     bufio.NewReaderSize(transform.NewReader(rc, enc.NewDecoder()), readBufferSize),
	}, nil
}

// Next advances to the next line. It returns false at end of input or on a
// read error; Err distinguishes the two.
func (r *Reader) Next() bool {
	if r.err != nil || r.eof {
		return false
	}

	s, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("read line %d: %w", r.n+1, err)
			return false
		}
		r.eof = true
		if s == "" {
			return false
		}
	}

	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	r.line = s
	r.n++
	return true
}

// Line returns the current line.
func (r *Reader) Line() string { return r.line }

// LineNumber returns the 1-based number of the current line.
func (r *Reader) LineNumber() int { return r.n }

// Err returns the first non-EOF read error.
func (r *Reader) Err() error { return r.err }

// Close releases the underlying stream when the Reader owns one. It is safe
// to call more than once.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}
