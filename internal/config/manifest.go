package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest groups a connection with one or more ingest jobs. It is the
// top-level object decoded from a manifest file.
type Manifest struct {
	Connection Connection `yaml:"connection" json:"connection"`
	Jobs       []Job      `yaml:"jobs" json:"jobs"`

	// Concurrency is the number of jobs run at once. Each job owns a private
	// connection. Zero means 1.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level" json:"level"`
	// Format is "console" or "json". Defaults to console.
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig selects and configures a metrics backend.
type MetricsConfig struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend string `yaml:"backend" json:"backend"`

	// Job is the Pushgateway grouping job name.
	Job string `yaml:"job" json:"job"`

	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url"`

	DatadogAddr string   `yaml:"datadog_addr" json:"datadog_addr"`
	Namespace   string   `yaml:"namespace" json:"namespace"`
	Tags        []string `yaml:"tags" json:"tags"`
}

// Job is the manifest form of an Ingest. Preset supplies defaults; any field
// set explicitly overrides the preset. Booleans are pointers so that an
// explicit false can override a preset's true.
type Job struct {
	Preset              string        `yaml:"preset" json:"preset"`
	Table               string        `yaml:"table" json:"table"`
	Path                string        `yaml:"path" json:"path"`
	Encoding            string        `yaml:"encoding" json:"encoding"`
	Delimiter           string        `yaml:"delimiter" json:"delimiter"`
	IgnoreFirstRow      *bool         `yaml:"ignore_first_row" json:"ignore_first_row"`
	EnforceDoubleQuotes *bool         `yaml:"enforce_double_quotes" json:"enforce_double_quotes"`
	BatchSize           int           `yaml:"batch_size" json:"batch_size"`
	BestEffort          *bool         `yaml:"best_effort" json:"best_effort"`
	Statement           StatementMode `yaml:"statement" json:"statement"`
}

// Ingest resolves the job against its preset.
func (j Job) Ingest() (Ingest, error) {
	var in Ingest
	if j.Preset != "" {
		mk, ok := Presets[j.Preset]
		if !ok {
			return Ingest{}, fmt.Errorf("unknown preset %q", j.Preset)
		}
		in = mk(j.Table, j.Path)
	} else {
		in = Ingest{Table: j.Table, Path: j.Path}
	}

	if j.Encoding != "" {
		in.Encoding = j.Encoding
	}
	if j.Delimiter != "" {
		in.Delimiter = j.Delimiter
	}
	if j.IgnoreFirstRow != nil {
		in.IgnoreFirstRow = *j.IgnoreFirstRow
	}
	if j.EnforceDoubleQuotes != nil {
		in.EnforceDoubleQuotes = *j.EnforceDoubleQuotes
	}
	if j.BatchSize != 0 {
		in.BatchSize = j.BatchSize
	}
	if j.BestEffort != nil {
		in.BestEffort = *j.BestEffort
	}
	if j.Statement != "" {
		in.Statement = j.Statement
	}
	return in.Normalized(), nil
}

// LoadManifest reads and decodes a manifest file. Unknown keys are rejected.
func LoadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	m, err := DecodeManifest(bytes.NewReader(b))
	if err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}

// DecodeManifest decodes a YAML (or JSON) manifest from r.
func DecodeManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Manifest{}, errors.New("empty manifest")
		}
		return Manifest{}, err
	}
	return m, nil
}

// Environment variables consulted by ApplyEnv.
const (
	EnvHost     = "SVLOAD_DB_HOST"
	EnvPort     = "SVLOAD_DB_PORT"
	EnvDatabase = "SVLOAD_DB_NAME"
	EnvUser     = "SVLOAD_DB_USER"
	EnvPassword = "SVLOAD_DB_PASSWORD"
)

// ApplyEnv overrides connection fields with non-empty environment values.
// getenv is usually os.Getenv; tests pass a map lookup.
func (c Connection) ApplyEnv(getenv func(string) string) Connection {
	out := c
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&out.Host, EnvHost)
	set(&out.Port, EnvPort)
	set(&out.Database, EnvDatabase)
	set(&out.User, EnvUser)
	// The password is taken verbatim; surrounding spaces may be significant.
	if v := getenv(EnvPassword); v != "" {
		out.Password = &v
	}
	return out
}
