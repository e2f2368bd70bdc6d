// Package metrics exposes Prometheus instruments for the fetch and sync stages.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every instrument below. It is separate from the default
// registry so tests can read counters without global state leaking.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	PagesFetched = factory.NewCounter(prometheus.CounterOpts{
		Name: "rental_sync_pages_fetched_total",
		Help: "Search result pages fetched successfully",
	})

	PageErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "rental_sync_page_errors_total",
		Help: "Search result pages that failed",
	})

	PageLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "rental_sync_page_latency_seconds",
		Help:    "Latency of a single search page request",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	ListingsFetched = factory.NewCounter(prometheus.CounterOpts{
		Name: "rental_sync_listings_fetched_total",
		Help: "Raw listings returned by the search API",
	})

	ListingsFiltered = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_sync_listings_filtered_total",
		Help: "Listings excluded by the regression filter, by reason",
	}, []string{"reason"})

	RowsSynced = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_sync_rows_synced_total",
		Help: "Rows inserted or filled, by store",
	}, []string{"store"})

	LastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Name: "rental_sync_last_run_timestamp_seconds",
		Help: "Unix time of the last completed pipeline run",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
