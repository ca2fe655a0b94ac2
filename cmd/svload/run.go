package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"svload/internal/config"
	"svload/internal/ingest"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		manifestPath string
		concurrency  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every job of a manifest",
		Long: `Run loads a YAML (or JSON) manifest holding one connection and a list
of jobs, and ingests each job's file. Jobs are independent: each owns a
private connection, and a failed job does not stop the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := config.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			m.Connection = m.Connection.ApplyEnv(getenv)
			if cmd.Flags().Changed("concurrency") {
				m.Concurrency = concurrency
			}

			issues := config.ValidateManifest(m)
			a.reportIssues(issues)
			if err := config.FirstError(issues); err != nil {
				return err
			}

			if err := a.applyManifestRuntime(cmd, m); err != nil {
				return err
			}
			flush := a.setupMetrics(a.metricsFor(cmd, m.Metrics))
			defer flush()

			jobs := make([]config.Ingest, len(m.Jobs))
			for i, j := range m.Jobs {
				// Validated above.
				jobs[i], _ = j.Ingest()
			}
			return a.runJobs(cmd, m.Connection, jobs, m.Concurrency)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "config", "c", "svload.yaml", "manifest path")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "jobs run at once (overrides the manifest)")
	return cmd
}

// runJobs ingests jobs with at most limit running at once and returns the
// joined job errors.
func (a *app) runJobs(cmd *cobra.Command, conn config.Connection, jobs []config.Ingest, limit int) error {
	if limit <= 0 {
		limit = 1
	}

	// Jobs share stdout; keep their progress lines whole.
	out := zerolog.SyncWriter(a.stdout)
	svc := ingest.New(conn, ingest.WithProgress(out), ingest.WithLogger(a.log))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
		ok   int
	)
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := svc.Ingest(cmd.Context(), job)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("job %d (%s): %w", i, job.Table, err))
				return nil
			}
			if !res.OK() {
				a.log.Warn().Int("job", i).Str("table", job.Table).Int("batches_failed", res.BatchesFailed).Msg("job finished with failed batches")
			}
			ok++
			return nil
		})
	}
	_ = g.Wait()

	a.log.Info().Int("jobs", len(jobs)).Int("succeeded", ok).Int("failed", len(errs)).Msg("run finished")
	return errors.Join(errs...)
}

// applyManifestRuntime rebuilds the logger from the manifest unless the
// log flags were given explicitly.
func (a *app) applyManifestRuntime(cmd *cobra.Command, m config.Manifest) error {
	level, format := a.logLevel, a.logFormat
	if !cmd.Flags().Changed("log-level") && m.Log.Level != "" {
		level = m.Log.Level
	}
	if !cmd.Flags().Changed("log-format") && m.Log.Format != "" {
		format = m.Log.Format
	}
	return a.setupLogger(level, format)
}

// metricsFor overlays explicitly set metrics flags on the manifest's
// metrics section.
func (a *app) metricsFor(cmd *cobra.Command, mc config.MetricsConfig) config.MetricsConfig {
	set := cmd.Flags().Changed
	if set("metrics-backend") || mc.Backend == "" {
		mc.Backend = a.metrics.Backend
	}
	if set("pushgateway-url") || mc.PushgatewayURL == "" {
		mc.PushgatewayURL = a.metrics.PushgatewayURL
	}
	if set("metrics-job") || mc.Job == "" {
		mc.Job = a.metrics.Job
	}
	if set("datadog-addr") || mc.DatadogAddr == "" {
		mc.DatadogAddr = a.metrics.DatadogAddr
	}
	return mc
}
