package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PendingSignings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ether",
		Subsystem: "coordinator",
		Name:      "pending_signings",
		Help:      "Number of signing requests currently awaiting resolution.",
	})

	SigningResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ether",
		Subsystem: "coordinator",
		Name:      "resolutions_total",
		Help:      "Signing resolutions delivered to an awaiting caller, by status.",
	}, []string{"status"})

	UnknownResolves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ether",
		Subsystem: "coordinator",
		Name:      "unknown_resolves_total",
		Help:      "Resolve calls for challenges with no pending slot.",
	})

	Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ether",
		Subsystem: "withdraw",
		Name:      "attempts_total",
		Help:      "Withdrawal attempts by terminal outcome.",
	}, []string{"outcome"})
)
