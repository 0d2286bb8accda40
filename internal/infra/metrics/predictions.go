package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(predictionsTotal) }

var predictionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "horoscope_predictions_total",
		Help: "Predictions requested, labeled by trigger and result.",
	},
	[]string{"trigger", "result"}, // trigger: on_demand|daily; result: ok|failed
)

func IncPrediction(trigger, result string) {
	predictionsTotal.WithLabelValues(norm(trigger), norm(result)).Inc()
}
