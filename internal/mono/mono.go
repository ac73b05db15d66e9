// Package mono provides monotonic-clock durations, kept deliberately
// separate from wall-clock timestamps per the split documented in
// SPEC_FULL.md: monotonic for internal timing windows (circuit breaker,
// eviction staleness, RTT), wall-clock for anything persisted.
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic nanosecond reading. Durations computed from
// two NanoTime() calls are valid even across wall-clock adjustments.
func NanoTime() int64 { return int64(time.Since(start)) }

// Since returns the monotonic duration elapsed since a prior NanoTime() value.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
