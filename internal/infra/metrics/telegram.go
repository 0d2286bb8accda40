package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		telegramSendFailuresTotal,
	)
}

var (
	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horoscope_telegram_commands_received_total",
			Help: "Incoming commands and button taps.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horoscope_telegram_rate_limit_triggered_total",
			Help: "Times users have been rate-limited, by update kind.",
		},
		[]string{"kind"},
	)

	telegramSendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horoscope_telegram_send_failures_total",
			Help: "Outbound Telegram calls that failed.",
		},
		[]string{"op"},
	)
)

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered(kind string) {
	telegramRateLimitTriggeredTotal.WithLabelValues(norm(kind)).Inc()
}

func IncTelegramSendFailure(op string) {
	telegramSendFailuresTotal.WithLabelValues(norm(op)).Inc()
}
