package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the dashboard's Prometheus metrics.
type Metrics struct {
	SnapshotsAggregated prometheus.Counter
	SidesRejected       *prometheus.CounterVec
	TradesReceived      prometheus.Counter
	FeedErrors          *prometheus.CounterVec
	Reconnects          *prometheus.CounterVec
	AggregateLatencyUs  prometheus.Histogram
	WSClients           prometheus.Gauge
	MaxOverallDepth     prometheus.Gauge
}

// NewMetrics registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SnapshotsAggregated: f.NewCounter(prometheus.CounterOpts{
			Name: "tradedash_snapshots_aggregated_total",
			Help: "Depth snapshots aggregated into a display book",
		}),
		SidesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedash_snapshot_sides_rejected_total",
			Help: "Snapshot sides rejected for invalid levels",
		}, []string{"side"}),
		TradesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "tradedash_trades_received_total",
			Help: "Trades added to the history",
		}),
		FeedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedash_feed_errors_total",
			Help: "Feed errors by stream",
		}, []string{"stream"}),
		Reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedash_feed_reconnects_total",
			Help: "Stream disconnects followed by a redial",
		}, []string{"stream"}),
		AggregateLatencyUs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradedash_aggregate_latency_us",
			Help:    "Time to aggregate one snapshot in microseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradedash_ws_clients",
			Help: "Connected browser websocket clients",
		}),
		MaxOverallDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradedash_max_overall_depth",
			Help: "Largest cumulative depth across both sides of the last book",
		}),
	}
}

func (m *Metrics) RecordAggregated(latencyUs float64, maxDepth float64) {
	m.SnapshotsAggregated.Inc()
	m.AggregateLatencyUs.Observe(latencyUs)
	m.MaxOverallDepth.Set(maxDepth)
}

func (m *Metrics) RecordRejected(side string) {
	m.SidesRejected.WithLabelValues(side).Inc()
}

func (m *Metrics) RecordTrade() { m.TradesReceived.Inc() }

func (m *Metrics) RecordFeedError(stream string) {
	m.FeedErrors.WithLabelValues(stream).Inc()
}

func (m *Metrics) RecordReconnect(stream string) {
	m.Reconnects.WithLabelValues(stream).Inc()
}

func (m *Metrics) SetWSClients(n int) { m.WSClients.Set(float64(n)) }
