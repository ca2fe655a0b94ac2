package sv

import "strings"

// Normalizer turns one line into a row of fields.
//
// In order:
//  1. With StripQuotes, every '"' is removed from the line, regardless of
//     position.
//  2. The line is split on each literal occurrence of Delimiter. Empty
//     fields, including trailing ones, are kept.
//  3. With WrapQuotes, every field f becomes "f". Wrapping happens after the
//     split, so the added quotes are never stripped.
//
// Nothing is trimmed, escaped or type-converted.
type Normalizer struct {
	Delimiter   string
	StripQuotes bool
	WrapQuotes  bool
}

// NewNormalizer returns the normalizer for the historical "enforce double
// quotes" policy. wrap is false when fields are bound as statement
// parameters and only the stripping half of the policy applies.
func NewNormalizer(delimiter string, enforceDoubleQuotes, wrap bool) Normalizer {
	return Normalizer{
		Delimiter:   delimiter,
		StripQuotes: enforceDoubleQuotes,
		WrapQuotes:  enforceDoubleQuotes && wrap,
	}
}

// Normalize returns the fields of line. The result is freshly allocated and
// may be retained by the caller.
func (n Normalizer) Normalize(line string) []string {
	if n.StripQuotes {
		line = strings.ReplaceAll(line, `"`, "")
	}

	var fields []string
	if n.Delimiter == "" {
		fields = []string{line}
	} else {
		fields = strings.Split(line, n.Delimiter)
	}

	if n.WrapQuotes {
		for i, f := range fields {
			fields[i] = `"` + f + `"`
		}
	}
	return fields
}
