package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Recorder collects heartbeat metrics.
type Recorder struct {
	cyclesTotal    prometheus.Counter
	cycleDuration  prometheus.Histogram
	fetchFailures  *prometheus.CounterVec
	opportunities  *prometheus.CounterVec
	ordersPlaced   *prometheus.CounterVec
	snapshotWrites prometheus.Counter
}

func New() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kalshiweather_cycles_total",
			Help: "Total number of heartbeat cycles run",
		}),
		cycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kalshiweather_cycle_duration_seconds",
			Help:    "Duration of one heartbeat cycle in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		fetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kalshiweather_fetch_failures_total",
			Help: "Upstream fetch failures per component",
		}, []string{"component"}),
		opportunities: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kalshiweather_opportunities_total",
			Help: "Opportunity evaluations by decision outcome",
		}, []string{"decision"}),
		ordersPlaced: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kalshiweather_orders_total",
			Help: "Order placement attempts by result",
		}, []string{"result"}),
		snapshotWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kalshiweather_snapshot_writes_total",
			Help: "Snapshot documents persisted",
		}),
	}
}

func (r *Recorder) ObserveCycle(d time.Duration) {
	r.cyclesTotal.Inc()
	r.cycleDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordFetchFailure(component string) {
	r.fetchFailures.WithLabelValues(component).Inc()
}

func (r *Recorder) RecordOpportunity(decision bool) {
	label := "no-signal"
	if decision {
		label = "buy-yes"
	}
	r.opportunities.WithLabelValues(label).Inc()
}

func (r *Recorder) RecordOrder(result string) {
	r.ordersPlaced.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordSnapshotWrite() {
	r.snapshotWrites.Inc()
}

// Serve exposes /metrics until the context is cancelled.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listener starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
