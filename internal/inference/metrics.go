package inference

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upstreamDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "pulse_api",
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of calls to the ML inference services in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
	},
	[]string{"service", "path", "outcome"},
)

// outcome labels one finished upstream call.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return "unavailable"
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Timeout {
			return "timeout"
		}
		return "upstream_error"
	}
	return "error"
}

func observe(service, path string, start time.Time, err error) {
	upstreamDuration.WithLabelValues(service, path, outcome(err)).Observe(time.Since(start).Seconds())
}
