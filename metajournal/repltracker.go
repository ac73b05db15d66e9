package metajournal

import (
	"sync"

	"github.com/claudefs/core/internal/ids"
)

// ReplicationTracker maintains, per remote site and per shard, the
// highest Seq acknowledged by that site, and exposes the low-water mark
// across sites for the journal's pruning policy (§4.5).
type ReplicationTracker struct {
	mu    sync.RWMutex
	marks map[ids.ShardId]map[ids.SiteId]ids.Sequence
}

func NewReplicationTracker() *ReplicationTracker {
	return &ReplicationTracker{marks: make(map[ids.ShardId]map[ids.SiteId]ids.Sequence)}
}

// Ack records that site has acknowledged up through seq for shard; acks
// never move backward for a given (shard, site) pair.
func (t *ReplicationTracker) Ack(shard ids.ShardId, site ids.SiteId, seq ids.Sequence) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.marks[shard]
	if !ok {
		m = make(map[ids.SiteId]ids.Sequence)
		t.marks[shard] = m
	}
	if seq > m[site] {
		m[site] = seq
	}
}

func (t *ReplicationTracker) Watermark(shard ids.ShardId, site ids.SiteId) ids.Sequence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.marks[shard][site]
}

// LowWaterMark returns the minimum acknowledged seq across every known
// site for shard; sites never contacted are excluded (treated as "not
// yet a replication target" rather than forcing the watermark to zero
// forever).
func (t *ReplicationTracker) LowWaterMark(shard ids.ShardId) (ids.Sequence, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.marks[shard]
	if !ok || len(m) == 0 {
		return 0, false
	}
	var low ids.Sequence
	first := true
	for _, v := range m {
		if first || v < low {
			low = v
			first = false
		}
	}
	return low, true
}

// PrunablePoint returns the highest seq the journal may safely prune
// through: min(low_water)-1, per §4.5.
func (t *ReplicationTracker) PrunablePoint(shard ids.ShardId) (ids.Sequence, bool) {
	low, ok := t.LowWaterMark(shard)
	if !ok || low == 0 {
		return 0, false
	}
	return low - 1, true
}

// AllWatermarks exposes every known (site -> seq) pair for shard, for
// operators.
func (t *ReplicationTracker) AllWatermarks(shard ids.ShardId) map[ids.SiteId]ids.Sequence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[ids.SiteId]ids.Sequence, len(t.marks[shard]))
	for k, v := range t.marks[shard] {
		out[k] = v
	}
	return out
}
