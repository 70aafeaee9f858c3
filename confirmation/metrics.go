package confirmation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verdictsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forkwatch_verdicts_total",
			Help: "Count of confirmation verdicts, labeled by outcome.",
		},
		[]string{"confirmed"},
	)
	anomaliesObserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forkwatch_anomalies_total",
			Help: "Count of confirmed blocks later observed off the canonical chain.",
		},
	)
	snapshotsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forkwatch_snapshots_skipped_total",
			Help: "Count of snapshots dropped because their fork choice view was malformed.",
		},
	)
)
