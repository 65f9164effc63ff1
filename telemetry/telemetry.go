package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry *prometheus.Registry

// Counter is the minimal counter surface used by instrumented code.
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec is a labeled counter.
type CounterVec interface {
	With(labels ...string) Counter
}

// NoopStat satisfies Counter without recording anything. It is the default
// until Initialize is called, so instrumented code never nil-checks.
type NoopStat struct{}

func (NoopStat) Inc()        {}
func (NoopStat) Add(float64) {}

type noopCounterVec struct{}

func (noopCounterVec) With(...string) Counter { return NoopStat{} }

type promCounterVec struct {
	vec *prometheus.CounterVec
}

func (c promCounterVec) With(labels ...string) Counter {
	return c.vec.WithLabelValues(labels...)
}

// ConnectionCounts exposes the registry's observability accessors so gauges
// can sample live values on scrape.
type ConnectionCounts interface {
	ConnectionCount() int
	SubscriptionCount() int
}

// Initialize replaces the no-op metrics with real Prometheus collectors and
// registers gauges sampling the connection registry. Call once at startup,
// before Handler.
func Initialize(counts ConnectionCounts) {
	registry = prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "websocket_active_connections",
		Help: "Number of currently registered websocket connections",
	}, func() float64 { return float64(counts.ConnectionCount()) }))

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "websocket_active_subscriptions",
		Help: "Total topic subscriptions across all connections",
	}, func() float64 { return float64(counts.SubscriptionCount()) }))

	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_published_total",
		Help: "Messages accepted for broadcast after persistence",
	})
	registry.MustRegister(published)
	MessagesPublishedTotal = published

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "message_deliveries_total",
		Help: "Per-subscriber delivery attempts by result",
	}, []string{"result"})
	registry.MustRegister(deliveries)
	MessageDeliveriesTotal = promCounterVec{vec: deliveries}

	closed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connections_closed_total",
		Help: "Server-initiated connection closures by reason",
	}, []string{"reason"})
	registry.MustRegister(closed)
	ConnectionsClosedTotal = promCounterVec{vec: closed}
}

// Handler serves the metrics endpoint. Before Initialize it serves an empty
// registry, which keeps the route harmless in tests.
func Handler() http.Handler {
	r := registry
	if r == nil {
		r = prometheus.NewRegistry()
	}
	return promhttp.HandlerFor(r, promhttp.HandlerOpts{})
}
