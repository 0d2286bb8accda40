package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(stateRequestsTotal) }

var stateRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "horoscope_flow_state_requests_total",
		Help: "Conversation state lookups by backend and result.",
	},
	[]string{"backend", "result"}, // result: hit|miss|error
)

func IncStateRequest(backend, result string) {
	stateRequestsTotal.WithLabelValues(norm(backend), norm(result)).Inc()
}
