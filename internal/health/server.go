// Package health exposes the pipeline's /healthz and /metrics HTTP
// surface, independent from the logging pipeline it reports on.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SinkStatus is the health snapshot of a single configured sink.
type SinkStatus struct {
	Name         string `json:"name"`
	Healthy      bool   `json:"healthy"`
	CircuitState string `json:"circuitState"`
}

// Reporter is implemented by both the pipeline processor and the
// top-level Logger facade (which forwards to whichever processor is
// currently live); it's the only coupling point between this package
// and the rest of the pipeline.
type Reporter interface {
	SinkStatuses() []SinkStatus
}

// Server hosts /healthz (liveness + per-sink status) and /metrics
// (Prometheus exposition) behind a gorilla/mux router.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewServer builds a health/metrics server bound to addr. reporter may
// be nil, in which case /healthz reports liveness only.
func NewServer(addr string, reporter Reporter, logger *logrus.Logger) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthzHandler(reporter)).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func healthzHandler(reporter Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			Status string       `json:"status"`
			Sinks  []SinkStatus `json:"sinks,omitempty"`
		}{Status: "ok"}

		if reporter != nil {
			resp.Sinks = reporter.SinkStatuses()
			for _, s := range resp.Sinks {
				if !s.Healthy {
					resp.Status = "degraded"
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusOK) // liveness stays 200; degraded sinks are reported, not fatal
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Start begins serving in the background. Errors other than a clean
// shutdown are logged, not returned, matching the fire-and-forget
// lifecycle of an ambient diagnostics server.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.WithError(err).Error("health server stopped unexpectedly")
			}
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
