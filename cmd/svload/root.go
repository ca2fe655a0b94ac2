package main

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"svload/internal/config"
	"svload/internal/logging"
)

// app carries the global flags and the objects built from them.
type app struct {
	stdout io.Writer
	stderr io.Writer

	envFile   string
	logLevel  string
	logFormat string
	metrics   config.MetricsConfig

	log zerolog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "svload",
		Short:         "Load CSV/TSV files into database tables in batches",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadEnv(cmd); err != nil {
				return err
			}
			return a.setupLogger(a.logLevel, a.logFormat)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file with SVLOAD_DB_* variables (ignored when missing unless set explicitly)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "console", "log format: console or json")
	pf.StringVar(&a.metrics.Backend, "metrics-backend", "none", "metrics backend: none, pushgateway, datadog")
	pf.StringVar(&a.metrics.PushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (default $PUSHGATEWAY_URL or http://localhost:9091)")
	pf.StringVar(&a.metrics.Job, "metrics-job", "svload", "Pushgateway job name")
	pf.StringVar(&a.metrics.DatadogAddr, "datadog-addr", "", "DogStatsD address, e.g. 127.0.0.1:8125")

	root.AddCommand(
		newIngestCmd(a),
		newRunCmd(a),
		newValidateCmd(a),
		newBackendsCmd(a),
	)
	return root
}

// loadEnv reads the dotenv file into the process environment without
// overriding variables that are already set.
func (a *app) loadEnv(cmd *cobra.Command) error {
	if a.envFile == "" {
		return nil
	}
	err := godotenv.Load(a.envFile)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return err
}

func (a *app) setupLogger(level, format string) error {
	l, err := logging.New(level, format, zerolog.SyncWriter(a.stderr))
	if err != nil {
		return err
	}
	a.log = l
	return nil
}

// getenv is swapped in tests.
var getenv = os.Getenv
