package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ian-yc-kim/cnts-messaging-svc/core/logger"
)

// livenessHandler reports that the process is up. No dependencies are probed.
func livenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// readinessHandler probes every dependency check in sequence and fails with
// 503 on the first error.
func readinessHandler(log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
				writeError(w, http.StatusServiceUnavailable, "not_ready", "service is not ready", "")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
