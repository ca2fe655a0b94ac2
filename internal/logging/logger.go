// Package logging builds the zerolog logger shared by the CLI and ingests.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w (stderr when nil). level is one of
// debug, info, warn, error (default info); format is "console" (default)
// or "json".
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl := zerolog.InfoLevel
	if s := strings.TrimSpace(level); s != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
		}
		lvl = l
	}

	var out io.Writer
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case "json":
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: want console or json", format)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Str("module", "svload").Logger(), nil
}
