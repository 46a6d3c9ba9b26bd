// Package metrics records loader timings and shard outcomes in Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// shutdownTimeout bounds metrics server shutdown.
const shutdownTimeout = 5 * time.Second

// Recorder is a Prometheus-backed driven.MetricsRecorder with its own registry.
type Recorder struct {
	registry   *prom.Registry
	opTotal    *prom.CounterVec
	opSeconds  *prom.HistogramVec
	shardTotal *prom.CounterVec
}

// NewRecorder creates a recorder and registers its collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prom.NewRegistry(),
		opTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "loader_operation_total",
			Help: "Total number of loader operations",
		}, []string{"op", "success"}),
		opSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "loader_operation_seconds",
			Help:    "Loader operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		shardTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "shard_result_total",
			Help: "Sharded search shard outcomes",
		}, []string{"shard", "outcome"}),
	}
	r.registry.MustRegister(r.opTotal, r.opSeconds, r.shardTotal)
	return r
}

// ObserveOperation counts and times one loader operation.
func (r *Recorder) ObserveOperation(op string, success bool, seconds float64) {
	s := strconv.FormatBool(success)
	r.opTotal.WithLabelValues(op, s).Inc()
	r.opSeconds.WithLabelValues(op, s).Observe(seconds)
}

// IncShard counts one shard outcome (hit, empty, failed, skipped).
func (r *Recorder) IncShard(shard, outcome string) {
	r.shardTotal.WithLabelValues(shard, outcome).Inc()
}

// Handler serves /metrics and /healthz.
func (r *Recorder) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve runs the metrics endpoint on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
