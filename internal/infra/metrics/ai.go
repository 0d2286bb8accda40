package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatencyMs,
		aiInflight,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horoscope_ai_tokens_in",
			Help: "Sum of prompt tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horoscope_ai_tokens_out",
			Help: "Sum of completion tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horoscope_ai_calls_latency_ms",
			Help:    "Text generation latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		},
		[]string{"provider", "model", "success"},
	)

	aiInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "horoscope_ai_inflight",
			Help: "Text generation calls currently holding a concurrency slot.",
		},
	)
)

func ObserveChatUsage(provider, model string, tokensIn, tokensOut int, latency time.Duration, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latency.Milliseconds()))
}

func AIInflightInc() { aiInflight.Inc() }
func AIInflightDec() { aiInflight.Dec() }
