package monitor

import (
	"io"
	"log/slog"
	"time"
)

// Config holds monitor tunables with environment variable mapping. The
// defaults keep idle sockets around for five minutes and sweep twice a minute.
type Config struct {
	CheckInterval     time.Duration `env:"WS_INACTIVITY_CHECK_INTERVAL" envDefault:"30s"`
	InactivityTimeout time.Duration `env:"WS_INACTIVITY_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout   time.Duration `env:"WS_MONITOR_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type monitorOptions struct {
	checkInterval     time.Duration
	inactivityTimeout time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
	now               func() time.Time
}

func defaultOptions() *monitorOptions {
	return &monitorOptions{
		checkInterval:     30 * time.Second,
		inactivityTimeout: 5 * time.Minute,
		shutdownTimeout:   10 * time.Second,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:               time.Now,
	}
}

// Option configures the monitor.
type Option func(*monitorOptions)

// WithCheckInterval sets how often the sweep runs. Zero keeps the default.
func WithCheckInterval(d time.Duration) Option {
	return func(o *monitorOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithInactivityTimeout sets how long a connection may stay silent before it
// is closed. Zero keeps the default.
func WithInactivityTimeout(d time.Duration) Option {
	return func(o *monitorOptions) {
		if d > 0 {
			o.inactivityTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for an in-flight sweep.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *monitorOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithLogger sets the logger for monitor events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *monitorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *monitorOptions) {
		if now != nil {
			o.now = now
		}
	}
}
