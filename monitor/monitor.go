package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ian-yc-kim/cnts-messaging-svc/registry"
	"github.com/ian-yc-kim/cnts-messaging-svc/telemetry"
)

// closeNormalClosure is the RFC 6455 normal closure status code used when the
// server terminates an idle connection.
const closeNormalClosure = 1000

// inactivityReason is sent in the close frame so clients can tell a timeout
// apart from other server-initiated closures.
const inactivityReason = "closed due to inactivity timeout"

// ConnRegistry is the slice of the connection registry the monitor needs:
// a lock-free snapshot to scan and idempotent removal of stale connections.
type ConnRegistry interface {
	Snapshot() []registry.ConnInfo
	Disconnect(id string)
}

// Monitor periodically scans registered connections and forcibly closes the
// ones whose last activity is older than the inactivity timeout.
type Monitor struct {
	reg      ConnRegistry
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu              sync.Mutex
	cancel          context.CancelFunc
	running         atomic.Bool
	wg              sync.WaitGroup
	shutdownTimeout time.Duration

	checksRun         atomic.Int64
	connectionsClosed atomic.Int64
}

// Stats provides observability metrics for monitoring and debugging.
type Stats struct {
	ChecksRun         int64 // Total number of sweep iterations completed
	ConnectionsClosed int64 // Total connections closed for inactivity
	IsRunning         bool  // Whether the monitor loop is active
}

// New creates a liveness monitor for the given registry.
func New(reg ConnRegistry, opts ...Option) (*Monitor, error) {
	if reg == nil {
		return nil, ErrRegistryNil
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.checkInterval <= 0 {
		return nil, fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if options.inactivityTimeout <= 0 {
		return nil, fmt.Errorf("%w: inactivity timeout must be positive", ErrInvalidConfig)
	}

	return &Monitor{
		reg:             reg,
		interval:        options.checkInterval,
		timeout:         options.inactivityTimeout,
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
		now:             options.now,
	}, nil
}

// NewFromConfig creates a Monitor from configuration.
// Additional options can override config values.
func NewFromConfig(cfg Config, reg ConnRegistry, opts ...Option) (*Monitor, error) {
	allOpts := append([]Option{
		WithCheckInterval(cfg.CheckInterval),
		WithInactivityTimeout(cfg.InactivityTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)

	return New(reg, allOpts...)
}

// Start begins the periodic inactivity sweep. This is a blocking operation
// that runs until the context is cancelled. Use Run() for errgroup pattern or
// call this in a goroutine.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.running.Store(true)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "liveness monitor started",
		slog.Duration("check_interval", m.interval),
		slog.Duration("inactivity_timeout", m.timeout))

	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(context.Background(), "liveness monitor stopping")
			m.running.Store(false)
			return ctx.Err()
		case <-ticker.C:
			m.sweepWithWait()
		}
	}
}

// Stop gracefully shuts down the monitor, waiting up to the shutdown timeout
// for an in-flight sweep to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return ErrNotStarted
	}

	m.running.Store(false)

	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("liveness monitor stopped cleanly")
		return nil
	case <-ctx.Done():
		m.logger.Warn("liveness monitor shutdown timeout exceeded - in-flight sweep abandoned",
			slog.Duration("timeout", m.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", m.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the monitor, watches context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (m *Monitor) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- m.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = m.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// sweepWithWait tracks the sweep with the WaitGroup so Stop can wait for it.
func (m *Monitor) sweepWithWait() {
	// Verify the monitor is still running AND add to the waitgroup atomically,
	// otherwise Stop() might wait on an incomplete count.
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	defer m.wg.Done()

	m.sweep()
	m.checksRun.Add(1)
}

// sweep closes and removes every connection idle past the timeout. It works
// on a snapshot: connections that vanish mid-sweep are tolerated because
// Disconnect is idempotent, and a close failure never aborts the sweep.
func (m *Monitor) sweep() {
	cutoff := m.now().Add(-m.timeout)

	for _, info := range m.reg.Snapshot() {
		if !info.LastActivity.Before(cutoff) {
			continue
		}

		if err := info.Conn.Close(closeNormalClosure, inactivityReason); err != nil {
			m.logger.Warn("failed to close inactive connection",
				slog.String("client_id", info.ID), slog.Any("error", err))
		}
		m.reg.Disconnect(info.ID)

		m.connectionsClosed.Add(1)
		telemetry.ConnectionsClosedTotal.With("inactivity").Inc()

		m.logger.Info("closed inactive connection",
			slog.String("client_id", info.ID),
			slog.Time("last_activity", info.LastActivity))
	}
}

// Stats returns current monitor statistics. Thread-safe.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	isRunning := m.cancel != nil
	m.mu.Unlock()

	return Stats{
		ChecksRun:         m.checksRun.Load(),
		ConnectionsClosed: m.connectionsClosed.Load(),
		IsRunning:         isRunning,
	}
}

// Healthcheck validates that the monitor loop is operational.
func (m *Monitor) Healthcheck(ctx context.Context) error {
	if !m.Stats().IsRunning {
		return ErrNotRunning
	}
	return nil
}
