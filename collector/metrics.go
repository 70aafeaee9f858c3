package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotsCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forkwatch_snapshots_collected_total",
			Help: "Count of fork choice snapshots collected and persisted.",
		},
	)
	collectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forkwatch_collection_errors_total",
			Help: "Count of polling rounds that failed to produce a snapshot.",
		},
	)
	observedSlot = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkwatch_observed_slot",
			Help: "Slot of the most recently collected snapshot.",
		},
	)
	observedBlockCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forkwatch_observed_block_count",
			Help: "Number of blocks in the most recently collected fork choice dump.",
		},
	)
)
