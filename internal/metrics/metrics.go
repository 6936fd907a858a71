// Package metrics exposes timer activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sadopc/teamclock/internal/timer"
)

// Collector implements timer.Observer.
type Collector struct {
	transitions *prometheus.CounterVec
	staleClosed prometheus.Counter
	staleHours  prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamclock",
			Name:      "timer_transitions_total",
			Help:      "Timer transitions by operation and outcome.",
		}, []string{"op", "outcome"}),
		staleClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamclock",
			Name:      "timer_stale_closed_total",
			Help:      "Running timers closed automatically after the stale threshold.",
		}),
		staleHours: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "teamclock",
			Name:      "timer_stale_closed_hours",
			Help:      "Net hours recorded on auto-closed timers.",
			Buckets:   []float64{24, 36, 48, 72, 168},
		}),
	}
	if reg != nil {
		reg.MustRegister(c.transitions, c.staleClosed, c.staleHours)
	}
	return c
}

func (c *Collector) Transition(op string, err error) {
	c.transitions.WithLabelValues(op, outcome(err)).Inc()
}

func (c *Collector) StaleClosed(e *timer.TimeEntry) {
	c.staleClosed.Inc()
	c.staleHours.Observe(float64(e.Duration) / 3600)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, timer.ErrPersistence):
		return "persistence_error"
	case errors.Is(err, timer.ErrConflictingActiveTimer):
		return "conflict"
	case errors.Is(err, timer.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, timer.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

// Serve exposes reg on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
