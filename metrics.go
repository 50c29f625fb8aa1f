package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// jobsTotal counts processed estimate requests by outcome.
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "measure_worker_jobs_total",
		Help: "Estimate requests processed, by result",
	}, []string{"result"}) // "ok", "not_found", "invalid", "error"

	estimationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "measure_worker_estimation_duration_seconds",
		Help:    "Time spent inside a single estimation",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~0.8s
	})

	subsetSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "measure_worker_subset_size",
		Help:    "Neighbor subset size per estimation",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	datasetFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "measure_worker_dataset_fallbacks_total",
		Help: "Estimations that found no neighbor and used the whole dataset",
	})
)

// serveMetrics exposes /metrics on addr in the background.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	logger.WithField("addr", addr).Info("serving metrics")
}
