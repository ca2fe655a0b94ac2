package main

import (
	"svload/internal/config"
	"svload/internal/metrics"
	"svload/internal/metrics/datadog"
	"svload/internal/metrics/prompush"
)

const defaultPushgatewayURL = "http://localhost:9091"

// setupMetrics installs the configured backend and returns a function that
// flushes it. Backend init failures are logged and leave metrics disabled.
func (a *app) setupMetrics(mc config.MetricsConfig) (flush func()) {
	noop := func() {}

	switch mc.Backend {
	case "", "none":
		a.log.Debug().Msg("metrics disabled")
		return noop

	case "pushgateway":
		url := mc.PushgatewayURL
		if url == "" {
			url = getenv("PUSHGATEWAY_URL")
		}
		if url == "" {
			url = defaultPushgatewayURL
		}
		b, err := prompush.NewBackend(mc.Job, url)
		if err != nil {
			a.log.Warn().Err(err).Msg("metrics: pushgateway init failed; using nop")
			return noop
		}
		metrics.SetBackend(b)
		a.log.Debug().Str("url", url).Str("job", mc.Job).Msg("metrics: pushgateway")
		return func() {
			if err := metrics.Flush(); err != nil {
				a.log.Warn().Err(err).Msg("metrics: push failed")
			}
		}

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       mc.DatadogAddr,
			Namespace:  mc.Namespace,
			GlobalTags: mc.Tags,
		})
		if err != nil {
			a.log.Warn().Err(err).Msg("metrics: datadog init failed; using nop")
			return noop
		}
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				a.log.Warn().Err(err).Msg("metrics: datadog close failed")
			}
		}

	default:
		a.log.Warn().Str("backend", mc.Backend).Msg("metrics: unknown backend; metrics disabled")
		return noop
	}
}
