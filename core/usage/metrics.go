package usage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lingualab",
			Name:      "reconcile_total",
			Help:      "Reconciled attendance events by outcome",
		},
		[]string{"outcome"},
	)

	reconcileConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lingualab",
		Name:      "reconcile_conflicts_total",
		Help:      "Reconciliations retried after a concurrent update",
	})

	reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lingualab",
		Name:      "reconcile_duration_seconds",
		Help:      "Reconciliation latency",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(reconcileTotal, reconcileConflicts, reconcileDuration)
}

func observe(res Result, err error, d time.Duration) {
	reconcileDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		reconcileTotal.WithLabelValues("error").Inc()
	case res.MissingPackage:
		reconcileTotal.WithLabelValues("missing_package").Inc()
	default:
		reconcileTotal.WithLabelValues(string(res.Action)).Inc()
	}
}
