// Package metrics exposes Prometheus metrics for the display backend.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scanout"

// Backend provides metrics for backend lifecycle and display events.
// All methods are nil-safe: calls on a nil *Backend are no-ops.
type Backend struct {
	// StageFailuresTotal counts initialization failures by stage name.
	StageFailuresTotal *prometheus.CounterVec

	// Displays tracks the number of displays the backend currently owns.
	Displays prometheus.Gauge

	// DisplayEventsTotal counts notifications by event.
	// Label values: "added", "removed", "render".
	DisplayEventsTotal *prometheus.CounterVec

	// InitSeconds observes how long successful initializations took.
	InitSeconds prometheus.Histogram
}

// NewBackend creates backend metrics and registers them with reg. If reg is
// nil, metrics are created but not registered.
func NewBackend(reg prometheus.Registerer) *Backend {
	m := &Backend{
		StageFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "stage_failures_total",
			Help:      "Total number of backend initialization failures by stage",
		}, []string{"stage"}),
		Displays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "displays",
			Help:      "Number of displays owned by the backend",
		}),
		DisplayEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "display_events_total",
			Help:      "Total number of display notifications by event",
		}, []string{"event"}),
		InitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "init_seconds",
			Help:      "Duration of successful backend initializations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.StageFailuresTotal,
			m.Displays,
			m.DisplayEventsTotal,
			m.InitSeconds,
		)
	}

	return m
}

// RecordStageFailure increments the failure counter for stage.
func (m *Backend) RecordStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailuresTotal.WithLabelValues(stage).Inc()
}

// SetDisplays sets the current display count.
func (m *Backend) SetDisplays(n int) {
	if m == nil {
		return
	}
	m.Displays.Set(float64(n))
}

// RecordDisplayEvent increments the counter for a display notification.
func (m *Backend) RecordDisplayEvent(event string) {
	if m == nil {
		return
	}
	m.DisplayEventsTotal.WithLabelValues(event).Inc()
}

// ObserveInit records the duration of a successful initialization.
func (m *Backend) ObserveInit(d time.Duration) {
	if m == nil {
		return
	}
	m.InitSeconds.Observe(d.Seconds())
}

// Server serves a registry over HTTP at /metrics.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server for the given gatherer.
func NewServer(addr string, g prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("metrics server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to two seconds for in-flight scrapes.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics server shutdown", "error", err)
	}
}
