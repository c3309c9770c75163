package channel

import (
	"log/slog"
	"time"

	"github.com/slcan-go/slcan/internal/logging"
)

// Option configures a Channel at construction time via the functional
// options pattern.
type Option func(*Channel)

// WithLogger overrides the channel's logger (defaults to
// logging.ForComponent("channel")).
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// WithMetrics enables or disables Prometheus/local-snapshot instrumentation
// (enabled by default).
func WithMetrics(enabled bool) Option {
	return func(c *Channel) { c.metricsEnabled = enabled }
}

// WithCommandTimeout sets the deadline for a single command round trip
// (S<n>, O, L, M, m, F) during Start, SetFilterStd/SetFilterXtd and the
// Status refresh; Teardown writes C without waiting for a reply. It does
// not affect the caller-supplied timeout on Write/Read.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Channel) { c.commandTimeout = d }
}

// WithRXQueueCapacity sets the bounded receive-queue capacity (default 64).
func WithRXQueueCapacity(n int) Option {
	return func(c *Channel) { c.rxCapacity = n }
}

func defaultOptions() []Option {
	return []Option{
		WithLogger(logging.ForComponent("channel")),
		WithMetrics(true),
		WithCommandTimeout(500 * time.Millisecond),
		WithRXQueueCapacity(64),
	}
}
