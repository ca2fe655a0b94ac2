// Package config provides configuration models and helpers for svload.
//
// This file adds a lightweight linter for Connection, Ingest and Manifest
// values. It performs static checks and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "connection.host",
// "jobs[1].batch_size"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FirstError returns the first SeverityError issue, or nil.
func FirstError(issues []Issue) error {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return iss
		}
	}
	return nil
}

// knownKinds lists the storage backends built into the binary.
var knownKinds = map[string]struct{}{
	"mysql":  {},
	"sqlite": {},
}

// ValidateConnection checks a Connection. prefix is prepended to issue paths.
func ValidateConnection(c Connection, prefix string) []Issue {
	var issues []Issue
	p := func(field string) string { return join(prefix, field) }

	kind := c.BackendKind()
	if _, ok := knownKinds[kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     p("kind"),
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", kind),
		})
	}

	if strings.TrimSpace(c.Database) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("database"),
			Message:  "database must not be empty",
		})
	}

	// The embedded SQLite backend only needs a database path.
	if kind == "sqlite" {
		return issues
	}

	if strings.TrimSpace(c.Host) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("host"),
			Message:  "host must not be empty",
		})
	}
	if strings.TrimSpace(c.Port) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("port"),
			Message:  "port must not be empty",
		})
	} else if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("port"),
			Message:  fmt.Sprintf("port %q is not a valid TCP port", c.Port),
		})
	}
	if strings.TrimSpace(c.User) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("user"),
			Message:  "user must not be empty",
		})
	}
	return issues
}

// ValidateIngest checks a (normalized) Ingest. prefix is prepended to issue
// paths.
func ValidateIngest(in Ingest, prefix string) []Issue {
	var issues []Issue
	p := func(field string) string { return join(prefix, field) }

	if strings.TrimSpace(in.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("table"),
			Message:  "table must not be empty",
		})
	}
	if strings.TrimSpace(in.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("path"),
			Message:  "path must not be empty",
		})
	}
	if in.Delimiter == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("delimiter"),
			Message:  "delimiter must not be empty",
		})
	} else if utf8.RuneCountInString(in.Delimiter) > 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     p("delimiter"),
			Message:  fmt.Sprintf("multi-character delimiter %q is matched verbatim", in.Delimiter),
		})
	}
	if in.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("batch_size"),
			Message:  fmt.Sprintf("batch_size=%d; must be positive", in.BatchSize),
		})
	}
	switch in.Statement {
	case "", StatementLiteral:
		if !in.EnforceDoubleQuotes {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     p("enforce_double_quotes"),
				Message:  "literal statements without enforced quotes paste raw field text into SQL",
			})
		}
	case StatementPrepared:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p("statement"),
			Message:  fmt.Sprintf("unknown statement mode %q; want %q or %q", in.Statement, StatementLiteral, StatementPrepared),
		})
	}
	return issues
}

// ValidateManifest checks the connection, every job, and runtime knobs.
func ValidateManifest(m Manifest) []Issue {
	var issues []Issue
	issues = append(issues, ValidateConnection(m.Connection, "connection")...)

	if len(m.Jobs) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "jobs",
			Message:  "manifest has no jobs",
		})
	}
	for i, j := range m.Jobs {
		prefix := fmt.Sprintf("jobs[%d]", i)
		in, err := j.Ingest()
		if err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     prefix + ".preset",
				Message:  err.Error(),
			})
			continue
		}
		issues = append(issues, ValidateIngest(in, prefix)...)
	}

	if m.Concurrency < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "concurrency",
			Message:  "concurrency must not be negative",
		})
	}

	switch m.Metrics.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.Metrics.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend without URL; the CLI default will be used",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.Metrics.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Metrics.Backend),
		})
	}
	return issues
}

func join(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}
