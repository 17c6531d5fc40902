package concat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sinkAdvancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concatsink_sink_advances_total",
			Help: "Number of times a sink moved its cursor onto a new target, by reason",
		},
		[]string{"reason"},
	)
	sinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concatsink_sink_writes_total",
			Help: "Number of chunks written through a sink, by outcome",
		},
		[]string{"outcome"},
	)
	sinkSupplyExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "concatsink_sink_supply_exhausted_total",
			Help: "Number of times a sink ran out of targets",
		},
	)
)

const (
	advanceReasonStart    = "start"
	advanceReasonFailure  = "failure"
	advanceReasonExplicit = "explicit"

	writeOutcomeSuccess = "success"
	writeOutcomeRetried = "retried"
	writeOutcomeFailed  = "failed"
	writeOutcomeInvalid = "invalid"
)
