// Package telemetry reports fatal run errors to Sentry when a DSN is configured.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Belphemur/ZeitDownloader/internal/config"
)

const flushTimeout = 5 * time.Second

// Reporter forwards errors to Sentry. The zero value and the reporter returned
// for an empty DSN are disabled and do nothing.
type Reporter struct {
	enabled bool
}

// Init configures the global Sentry hub. An empty dsn disables reporting.
func Init(dsn, environment, runID string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{}, nil
	}
	return initWith(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}, runID)
}

func initWith(opts sentry.ClientOptions, runID string) (*Reporter, error) {
	if err := sentry.Init(opts); err != nil {
		return nil, err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", runID)
	})

	logger := config.GetLogger()
	logger.Debug().Str("environment", opts.Environment).Msg("Sentry error reporting enabled")
	return &Reporter{enabled: true}, nil
}

// Enabled reports whether errors are forwarded
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// CaptureFatal sends err with the given tags. Context cancellation is the
// user stopping the run and is not reported.
func (r *Reporter) CaptureFatal(err error, tags map[string]string) {
	if !r.Enabled() || err == nil || errors.Is(err, context.Canceled) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for queued events to be delivered
func (r *Reporter) Flush() {
	if !r.Enabled() {
		return
	}
	if !sentry.Flush(flushTimeout) {
		logger := config.GetLogger()
		logger.Warn().Dur("timeout", flushTimeout).Msg("Timed out flushing Sentry events")
	}
}
