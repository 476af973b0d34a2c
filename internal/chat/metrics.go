package chat

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSaved   = "saved"
	outcomeGuest   = "guest"
	outcomeFailed  = "failed"
	outcomeInvalid = "invalid"
	outcomeRefused = "refused"
	outcomeBusy    = "busy"
)

var exchangeOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "chat",
		Name:      "exchanges_total",
		Help:      "Message exchanges by outcome.",
	},
	[]string{"outcome"},
)

// Collectors returns the metrics maintained by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{exchangeOutcomes}
}
