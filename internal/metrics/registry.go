// Package metrics exposes the client's Prometheus collectors: ingress
// throughput per worker kind, drop counts, pending-request backlog, and
// the periodic memory-usage report.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "edgenet"

// Registry is the collector registry every metric in this package
// attaches to. The caller wires Handler()'s HTTP mux into its own
// server rather than this package owning a listener by default.
var Registry = prometheus.NewRegistry()

var (
	// FramesHandled is a per-worker snapshot of its cumulative handled
	// count, sampled from the periodic MEMORY_USAGE command (spec.md §5's
	// "memory-usage reporter every 10s"). A gauge, not a counter, because
	// the value arrives as an absolute snapshot rather than a delta.
	FramesHandled = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ingress",
		Name:      "frames_handled",
		Help:      "Cumulative frames processed by an ingress worker, last sampled.",
	}, []string{"thread", "worker"})

	// FramesDropped is the matching cumulative-dropped snapshot.
	FramesDropped = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ingress",
		Name:      "frames_dropped",
		Help:      "Cumulative frames dropped by an ingress worker, last sampled.",
	}, []string{"thread", "worker"})

	// PendingRequests reports the current size of the request-response
	// registry.
	PendingRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "pending_requests",
		Help:      "Open requests awaiting resolution or rejection.",
	})

	// RequestOutcomes counts settled requests (resolved or rejected),
	// labelled by the action that opened them and how they settled.
	RequestOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "request_outcomes_total",
		Help:      "Pending requests settled, labelled by action and outcome.",
	}, []string{"action", "outcome"})

	// WorkerMemoryBytes reports each worker's self-measured memory
	// footprint, sampled from the periodic MEMORY_USAGE command.
	WorkerMemoryBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ingress",
		Name:      "worker_memory_bytes",
		Help:      "Self-reported memory usage per ingress worker.",
	}, []string{"thread", "worker"})

	// FleetSize reports the number of addresses currently admitted by
	// the fleet filter.
	FleetSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "fleet_size",
		Help:      "Addresses currently admitted by the fleet filter.",
	})
)

func init() {
	Registry.MustRegister(
		FramesHandled,
		FramesDropped,
		PendingRequests,
		RequestOutcomes,
		WorkerMemoryBytes,
		FleetSize,
	)
}
