package stateactor

import "time"

// IncrementalMetrics is the blockchain-side metrics snapshot the state
// actor pushes into the telemetry actor after every apply (spec.md §3's
// data-flow note: "a blockchain-metrics snapshot is pushed from the state
// actor into the telemetry actor after each apply"). It is distinct from
// the per-peer commit-time average telemetry keeps for remote peers.
type IncrementalMetrics struct {
	Height               uint64
	BlockCount           uint64
	LastBlockTime        time.Time
	LastInterBlockDelta  time.Duration
}

func (m *IncrementalMetrics) reset() {
	*m = IncrementalMetrics{}
}

// recordApply updates the snapshot for a block just applied at the current
// top. prevBlockTime is the CreatedAt of the block one height below, or
// the zero time if none exists (genesis).
func (m *IncrementalMetrics) recordApply(height uint64, createdAt time.Time, prevBlockTime time.Time) {
	m.Height = height
	m.BlockCount++
	if !prevBlockTime.IsZero() {
		m.LastInterBlockDelta = createdAt.Sub(prevBlockTime)
	}
	m.LastBlockTime = createdAt
}

// MetricsSink receives blockchain-metrics snapshots. Implemented by the
// telemetry actor; a nil sink is a valid no-op for callers that don't need
// metrics fan-out (e.g. tests).
type MetricsSink func(IncrementalMetrics)
