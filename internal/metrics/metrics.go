// Package metrics exposes the operational counters/gauges described in
// SPEC_FULL.md's ambient stack: conduit batches sent, circuit breaker
// trips, capacity watermark level, allocator free blocks. Grounded on
// the teacher's use of github.com/prometheus/client_golang, wired here
// rather than re-specified: components Inc/Set these directly instead
// of returning stats structs the caller must remember to scrape.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ConduitBatchesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claudefs_conduit_batches_sent_total",
		Help: "Batches sent per site conduit.",
	}, []string{"remote_site"})

	ConduitReconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claudefs_conduit_reconnects_total",
		Help: "Reconnect transitions per site conduit.",
	}, []string{"remote_site"})

	CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claudefs_circuit_breaker_trips_total",
		Help: "Circuit breaker Closed/HalfOpen -> Open transitions, per endpoint.",
	}, []string{"endpoint"})

	CapacityWatermark = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "claudefs_capacity_watermark_ratio",
		Help: "Fraction of device capacity used, per device.",
	}, []string{"device"})

	AllocatorFreeBlocks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "claudefs_allocator_free_blocks",
		Help: "Free blocks per size class, per device.",
	}, []string{"device", "size_class"})
)

// Registry returns a prometheus.Registerer with every metric above
// registered, for a process to expose via an HTTP handler or push
// gateway; left unwired to any specific HTTP mux since §1 scopes wire
// serving out of this core.
func Registry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(ConduitBatchesSent, ConduitReconnects, CircuitBreakerTrips, CapacityWatermark, AllocatorFreeBlocks)
	return r
}
