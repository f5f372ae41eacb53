// Package report forwards failures to crash/error-reporting backends.
//
// Data-fetch paths report every failure exactly once before returning it to
// their caller. Reporters never return errors: a backend that cannot accept a
// report logs and drops it.
package report

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plashr_failure_reports_total",
		Help: "Total number of failure reports accepted by reporter",
	}, []string{"reporter"})

	reportsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plashr_failure_reports_dropped_total",
		Help: "Total number of failure reports dropped because a backend was full or closed",
	})
)

// Failure describes one failed operation.
type Failure struct {
	// Component is the emitting package, e.g. "pagination".
	Component string

	// Operation names what failed, e.g. the paginated source name.
	Operation string

	// Err is the failure as returned to the caller.
	Err error

	// Attrs carries extra context such as page number or status code.
	Attrs map[string]string
}

// Reporter receives failures.
type Reporter interface {
	Report(ctx context.Context, f Failure)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, f Failure)

// Report calls fn.
func (fn ReporterFunc) Report(ctx context.Context, f Failure) {
	fn(ctx, f)
}

// Nop discards every report.
var Nop Reporter = ReporterFunc(func(context.Context, Failure) {})

// LogReporter writes failures as error-level zerolog events.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a reporter logging through logger.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With().Str("reporter", "log").Logger()}
}

// Report implements Reporter.
func (r *LogReporter) Report(_ context.Context, f Failure) {
	ev := r.logger.Error().
		Err(f.Err).
		Str("failure_component", f.Component).
		Str("operation", f.Operation)
	for k, v := range f.Attrs {
		ev = ev.Str(k, v)
	}
	ev.Msg("Failure reported")
	reportsTotal.WithLabelValues("log").Inc()
}

// Multi fans a report out to every reporter, in order.
func Multi(reporters ...Reporter) Reporter {
	rs := make([]Reporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return ReporterFunc(func(ctx context.Context, f Failure) {
		for _, r := range rs {
			r.Report(ctx, f)
		}
	})
}

// ErrorString returns err's message, or an empty string for nil.
func ErrorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Root returns the innermost error in err's Unwrap chain.
func Root(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}
