package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ian-yc-kim/cnts-messaging-svc/telemetry"
)

// Deps carries everything the HTTP surface needs. The websocket handler is a
// plain http.Handler so the api package stays independent of the transport
// details.
type Deps struct {
	Store     MessageStore
	Publisher MessagePublisher
	WebSocket http.Handler
	Logger    *slog.Logger

	// ReadinessChecks are probed by GET /health/ready; typically the database
	// healthcheck and the liveness monitor healthcheck.
	ReadinessChecks []func(context.Context) error
}

// NewRouter assembles the service's HTTP routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware())
	r.Use(loggingMiddleware(deps.Logger))

	r.Post("/api/messages", publishMessageHandler(deps.Store, deps.Publisher, deps.Logger))

	r.Get("/ws/{client_id}", deps.WebSocket.ServeHTTP)

	r.Get("/health/live", livenessHandler())
	r.Get("/health/ready", readinessHandler(deps.Logger, deps.ReadinessChecks...))

	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	return r
}
