package binding

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cinelist/watchlist/internal/envelope"
)

const (
	operationSeal = "seal"
	operationOpen = "open"

	resultReplayed = "replayed"
	resultTooLarge = "too_large"
)

var (
	metricOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "watchlist",
			Subsystem: "envelope",
			Name:      "operations_total",
			Help:      "Number of envelope seal and open operations performed by the HTTP binding, by result.",
		}, []string{"operation", "result"})

	metricPassthrough = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "watchlist",
			Subsystem: "envelope",
			Name:      "passthrough_total",
			Help:      "Number of requests which reached a handler in plaintext because they were not sealed.",
		})
)

// RegisterMetrics registers the binding's collectors with reg. Registering twice with the same registerer is not an
// error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{metricOperations, metricPassthrough} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func observe(operation string, err error) {
	metricOperations.WithLabelValues(operation, envelope.Class(err)).Inc()
}

func observeResult(operation, result string) {
	metricOperations.WithLabelValues(operation, result).Inc()
}
