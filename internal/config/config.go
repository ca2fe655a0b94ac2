// Package config defines the configuration model for svload: the database
// connection, the per-file ingest settings, and the manifest that groups
// several ingests for the CLI.
//
// Field names in Go mirror the YAML keys used in manifest files. JSON manifests
// are accepted as well since JSON is a subset of YAML.
//
// Example (trimmed):
//
//	connection:
//	  kind: mysql
//	  host: db.internal
//	  port: "3306"
//	  database: warehouse
//	  user: loader
//	jobs:
//	  - preset: tsv-header
//	    table: events
//	    path: /data/events.tsv
//	  - table: people
//	    path: /data/people.csv
//	    delimiter: ","
//	    batch_size: 5000
//	    best_effort: true
package config

import (
	"fmt"
	"strings"
)

// StatementMode selects how the batch writer renders an INSERT.
type StatementMode string

const (
	// StatementLiteral pastes field text into the SQL verbatim. This is the
	// historical behavior and the default.
	StatementLiteral StatementMode = "literal"

	// StatementPrepared binds every field as a parameter of a multi-row
	// prepared INSERT.
	StatementPrepared StatementMode = "prepared"
)

const (
	// DefaultEncoding is used when Ingest.Encoding is empty.
	DefaultEncoding = "UTF-8"

	// DefaultBatchSize is the number of rows per INSERT used by the presets.
	DefaultBatchSize = 200000

	// DefaultKind is the storage backend used when Connection.Kind is empty.
	DefaultKind = "mysql"
)

// Connection holds the parameters needed to reach the destination database.
//
// None of the values are escaped; they are handed to the driver's DSN
// builder as-is. Password is a pointer so that "absent" and "empty" stay
// distinguishable: a nil password omits the credential entirely.
type Connection struct {
	// Kind selects the storage backend registered with the storage factory.
	// Defaults to "mysql".
	Kind string `yaml:"kind" json:"kind"`

	Host     string  `yaml:"host" json:"host"`
	Port     string  `yaml:"port" json:"port"`
	Database string  `yaml:"database" json:"database"`
	User     string  `yaml:"user" json:"user"`
	Password *string `yaml:"password,omitempty" json:"password,omitempty"`

	// Params are extra driver parameters appended to the DSN
	// (e.g. "charset": "utf8mb4", "tls": "skip-verify").
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// BackendKind returns Kind or DefaultKind when Kind is blank.
func (c Connection) BackendKind() string {
	if k := strings.TrimSpace(c.Kind); k != "" {
		return k
	}
	return DefaultKind
}

// Redacted returns a copy of c with the password masked, suitable for logs.
func (c Connection) Redacted() Connection {
	out := c
	if c.Password != nil {
		masked := "***"
		out.Password = &masked
	}
	return out
}

// String renders the connection without its password.
func (c Connection) String() string {
	return fmt.Sprintf("%s://%s@%s:%s/%s", c.BackendKind(), c.User, c.Host, c.Port, c.Database)
}

// Ingest describes one load of one file into one table. It is immutable for
// the duration of an ingest.
type Ingest struct {
	// Table is the destination table; it must already exist.
	Table string `yaml:"table" json:"table"`

	// Path is the source file on the local filesystem.
	Path string `yaml:"path" json:"path"`

	// Encoding is the byte encoding label of the file (e.g. "UTF-8",
	// "ISO-8859-1", "windows-1250").
	Encoding string `yaml:"encoding" json:"encoding"`

	// Delimiter is split on verbatim. Multi-byte delimiters are allowed.
	Delimiter string `yaml:"delimiter" json:"delimiter"`

	// IgnoreFirstRow discards the first line of the file (a header).
	IgnoreFirstRow bool `yaml:"ignore_first_row" json:"ignore_first_row"`

	// EnforceDoubleQuotes strips every '"' from a line and wraps each field in
	// double quotes (literal statements) or only strips (prepared statements).
	EnforceDoubleQuotes bool `yaml:"enforce_double_quotes" json:"enforce_double_quotes"`

	// BatchSize is the number of rows per database round-trip.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// BestEffort logs and counts a failed batch and carries on with the next
	// one instead of stopping the ingest.
	BestEffort bool `yaml:"best_effort" json:"best_effort"`

	// Statement selects literal or prepared INSERT rendering.
	Statement StatementMode `yaml:"statement" json:"statement"`
}

// TSVWithHeader returns the settings for a UTF-8 tab-separated file whose
// first row is a header: quotes enforced, 200k rows per batch.
func TSVWithHeader(table, path string) Ingest {
	return preset(table, path, "\t", true)
}

// TSVWithoutHeader is TSVWithHeader without skipping the first row.
func TSVWithoutHeader(table, path string) Ingest {
	return preset(table, path, "\t", false)
}

// CSVWithHeader returns the settings for a UTF-8 comma-separated file whose
// first row is a header: quotes enforced, 200k rows per batch.
func CSVWithHeader(table, path string) Ingest {
	return preset(table, path, ",", true)
}

// CSVWithoutHeader is CSVWithHeader without skipping the first row.
func CSVWithoutHeader(table, path string) Ingest {
	return preset(table, path, ",", false)
}

func preset(table, path, delim string, header bool) Ingest {
	return Ingest{
		Table:               table,
		Path:                path,
		Encoding:            DefaultEncoding,
		Delimiter:           delim,
		IgnoreFirstRow:      header,
		EnforceDoubleQuotes: true,
		BatchSize:           DefaultBatchSize,
		Statement:           StatementLiteral,
	}
}

// Presets maps preset names usable in manifests and on the command line to
// their constructors.
var Presets = map[string]func(table, path string) Ingest{
	"tsv-header": TSVWithHeader,
	"tsv":        TSVWithoutHeader,
	"csv-header": CSVWithHeader,
	"csv":        CSVWithoutHeader,
}

// Normalized fills defaults (encoding, statement mode, zero batch size) and
// decodes the historical escaped delimiter forms. It does not validate.
func (i Ingest) Normalized() Ingest {
	out := i
	if strings.TrimSpace(out.Encoding) == "" {
		out.Encoding = DefaultEncoding
	}
	if out.Statement == "" {
		out.Statement = StatementLiteral
	}
	if out.BatchSize == 0 {
		out.BatchSize = DefaultBatchSize
	}
	out.Delimiter = DecodeDelimiter(out.Delimiter)
	return out
}

// regexMeta holds the characters older callers escaped with a backslash
// because their delimiter used to be interpreted as a regular expression.
const regexMeta = `\.$|()[]{}^?*+`

// DecodeDelimiter maps the two-character escaped forms once required by
// regex-based splitting onto the literal delimiter: `\t` becomes a tab and
// `\|` (or any escaped regex metacharacter) becomes the bare character.
// Every other value is returned unchanged.
func DecodeDelimiter(d string) string {
	if len(d) != 2 || d[0] != '\\' {
		return d
	}
	switch {
	case d[1] == 't':
		return "\t"
	case strings.IndexByte(regexMeta, d[1]) >= 0:
		return d[1:]
	}
	return d
}
