package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"svload/internal/config"
	"svload/internal/ingest"
)

type connFlags struct {
	conn     config.Connection
	password string
}

func (f *connFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.conn.Kind, "kind", config.DefaultKind, "storage backend: mysql or sqlite")
	fl.StringVar(&f.conn.Host, "host", "localhost", "database host ($SVLOAD_DB_HOST)")
	fl.StringVar(&f.conn.Port, "port", "3306", "database port ($SVLOAD_DB_PORT)")
	fl.StringVar(&f.conn.Database, "database", "", "database name, or file path for sqlite ($SVLOAD_DB_NAME)")
	fl.StringVar(&f.conn.User, "user", "", "database user ($SVLOAD_DB_USER)")
	fl.StringVar(&f.password, "password", "", "database password; prefer $SVLOAD_DB_PASSWORD")
	fl.StringToStringVar(&f.conn.Params, "param", nil, "extra driver parameter key=value (repeatable)")
}

// resolve applies, in increasing precedence: flag defaults, environment,
// explicitly set flags.
func (f *connFlags) resolve(cmd *cobra.Command) config.Connection {
	defaults := config.Connection{Kind: config.DefaultKind, Host: "localhost", Port: "3306"}
	c := defaults.ApplyEnv(getenv)

	set := cmd.Flags().Changed
	if set("kind") {
		c.Kind = f.conn.Kind
	}
	if set("host") {
		c.Host = f.conn.Host
	}
	if set("port") {
		c.Port = f.conn.Port
	}
	if set("database") {
		c.Database = f.conn.Database
	}
	if set("user") {
		c.User = f.conn.User
	}
	if set("password") {
		pw := f.password
		c.Password = &pw
	}
	if set("param") {
		c.Params = f.conn.Params
	}
	return c
}

func newIngestCmd(a *app) *cobra.Command {
	var (
		cf        connFlags
		in        config.Ingest
		format    string
		noQuotes  bool
		statement string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load one file into one table",
		Example: `  svload ingest --table events --file events.tsv --format tsv --header
  svload ingest --kind sqlite --database local.db --table t --file t.csv --statement prepared`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mk, ok := map[string]func(string, string) config.Ingest{
				"csv": config.CSVWithoutHeader,
				"tsv": config.TSVWithoutHeader,
			}[format]
			if !ok {
				return fmt.Errorf("--format %q: want csv or tsv", format)
			}
			cfg := mk(in.Table, in.Path)
			cfg.IgnoreFirstRow = in.IgnoreFirstRow
			cfg.BestEffort = in.BestEffort
			cfg.EnforceDoubleQuotes = !noQuotes
			if cmd.Flags().Changed("delimiter") {
				cfg.Delimiter = in.Delimiter
			}
			if cmd.Flags().Changed("encoding") {
				cfg.Encoding = in.Encoding
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.BatchSize = in.BatchSize
			}
			cfg.Statement = config.StatementMode(statement)
			cfg = cfg.Normalized()

			conn := cf.resolve(cmd)
			issues := append(config.ValidateConnection(conn, "connection"), config.ValidateIngest(cfg, "ingest")...)
			a.reportIssues(issues)
			if err := config.FirstError(issues); err != nil {
				return err
			}

			flush := a.setupMetrics(a.metrics)
			defer flush()

			svc := ingest.New(conn, ingest.WithProgress(a.stdout), ingest.WithLogger(a.log))
			_, err := svc.Ingest(cmd.Context(), cfg)
			return err
		},
	}

	cf.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&in.Table, "table", "", "destination table (must exist)")
	fl.StringVar(&in.Path, "file", "", "source file path")
	fl.StringVar(&format, "format", "csv", "file format preset: csv or tsv")
	fl.BoolVar(&in.IgnoreFirstRow, "header", false, "skip the first line")
	fl.StringVar(&in.Delimiter, "delimiter", "", `field delimiter, overrides --format (\t accepted)`)
	fl.StringVar(&in.Encoding, "encoding", config.DefaultEncoding, "file encoding label, e.g. UTF-8, ISO-8859-1, windows-1250")
	fl.IntVar(&in.BatchSize, "batch-size", config.DefaultBatchSize, "rows per INSERT")
	fl.BoolVar(&noQuotes, "no-quotes", false, "do not strip and re-add double quotes")
	fl.BoolVar(&in.BestEffort, "best-effort", false, "log failed batches and continue")
	fl.StringVar(&statement, "statement", string(config.StatementLiteral), "statement mode: literal or prepared")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// reportIssues prints configuration findings to stderr.
func (a *app) reportIssues(issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintf(a.stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
}
