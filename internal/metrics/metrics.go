// Package metrics declares the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventwatch"

var (
	LinesClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_classified_total",
			Help:      "OCR lines seen by the classifier, by outcome.",
		},
		[]string{"outcome"},
	)

	Candidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Accepted classifier candidates by kind and phase.",
		},
		[]string{"kind", "phase"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Backend submissions by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	RemoteMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_messages_total",
			Help:      "Relayed messages handled, by type.",
		},
		[]string{"type"},
	)

	OracleCorrections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_corrections_total",
			Help:      "Corrections derived from the world oracle, by action.",
		},
		[]string{"action"},
	)

	ActiveRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_records",
			Help:      "Records active at the last sweep.",
		},
	)

	QuietDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiet_window_discards_total",
			Help:      "Lines discarded because a world hop was settling.",
		},
	)

	RelayReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_reconnects_total",
			Help:      "Relay websocket reconnect attempts.",
		},
	)
)
