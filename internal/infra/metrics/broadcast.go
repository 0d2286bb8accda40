package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		broadcastOutcomesTotal,
		broadcastRunSeconds,
		broadcastSubscribers,
		broadcastLastRun,
	)
}

var (
	broadcastOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horoscope_broadcast_outcomes_total",
			Help: "Per-user daily broadcast outcomes by status.",
		},
		[]string{"status"},
	)

	broadcastRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "horoscope_broadcast_run_seconds",
			Help:    "Wall time of a daily broadcast run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	broadcastSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horoscope_broadcast_subscribers",
			Help: "Subscribers attempted in the last broadcast run.",
		},
	)

	broadcastLastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horoscope_broadcast_last_run_timestamp_seconds",
			Help: "Unix time when the last broadcast run finished.",
		},
	)
)

func IncBroadcastOutcome(status string) {
	broadcastOutcomesTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveBroadcastRun(d time.Duration, subscribers int, finishedAt time.Time) {
	broadcastRunSeconds.Observe(d.Seconds())
	broadcastSubscribers.Set(float64(subscribers))
	broadcastLastRun.Set(float64(finishedAt.Unix()))
}
