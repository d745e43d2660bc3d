package vdom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mutationsTotal counts emitted mutations by op.
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcore_mutations_total",
		Help: "Total mutations emitted by op",
	}, []string{"op"})

	// rendersTotal counts render function invocations by result.
	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcore_renders_total",
		Help: "Total component renders by result (ready, aborted, failed)",
	}, []string{"result"})

	// memoizedTotal counts component updates skipped by the memo policy.
	memoizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcore_memoized_total",
		Help: "Total component updates skipped because props were memoizable",
	})

	// replacementsTotal counts component swaps at the same position.
	replacementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcore_replacements_total",
		Help: "Total component instances replaced by a different component",
	})

	// borrowConflictsTotal counts borrow conflicts surfaced through value handles.
	borrowConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcore_borrow_conflicts_total",
		Help: "Total borrow conflicts reported by reactive value handles",
	})

	// diffDuration tracks how long one scope diff takes.
	diffDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vcore_diff_duration_seconds",
		Help:    "Scope diff duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~160ms
	})
)

func observeMutation(op Op) {
	mutationsTotal.WithLabelValues(string(op)).Inc()
}
