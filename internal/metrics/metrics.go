package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	AttemptResultSuccess    = "success"
	AttemptResultFailure    = "failure"
	AttemptResultSuperseded = "superseded"
)

var (
	discoveryEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connectd_discovery_events_total",
			Help: "Total number of credentials received from remote controllers",
		},
	)

	connectionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectd_connection_attempts_total",
			Help: "Total number of finished session connection attempts, by result",
		},
		[]string{"result"},
	)

	sessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connectd_sessions_started_total",
			Help: "Total number of playback sessions started",
		},
	)

	sessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connectd_session_active",
			Help: "1 while a playback session is active, 0 otherwise",
		},
	)
)

func DiscoveryEvent() {
	discoveryEventsTotal.Inc()
}

// result is one of the AttemptResult constants
func ConnectionAttempt(result string) {
	connectionAttemptsTotal.WithLabelValues(result).Inc()
}

func SessionStarted() {
	sessionsStartedTotal.Inc()
	sessionActive.Set(1)
}

func SessionEnded() {
	sessionActive.Set(0)
}

// Serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
