package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	sharedResolveBatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "federation_shared_resolve_batch_total",
			Help: "Number of shared-config resolution batches run.",
		},
	)
	sharedResolveEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "federation_shared_resolve_entries_total",
			Help: "Number of share-config entries processed, by request shape.",
		},
		[]string{"shape"},
	)
	sharedResolveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "federation_shared_resolve_failures_total",
			Help: "Number of relative shared-module requests that could not be resolved.",
		},
	)

	sharedResolveBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "federation_shared_resolve_batch_duration_seconds",
			Help:    "Time taken to resolve one batch of share configs.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		sharedResolveBatchTotal,
		sharedResolveEntriesTotal,
		sharedResolveFailuresTotal,
		sharedResolveBatchDuration,
	)
}
