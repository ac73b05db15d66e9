// Capacity tracker (§4.8.4): watermark-driven eviction scoring. Grounded
// directly on original_source/crates/claudefs-storage/src/capacity.rs,
// expressed the teacher's way (explicit mutex-guarded struct, no global
// state). Segments are tracked in a map keyed by segment id;
// EvictionCandidates sorts its result so that score ties break by
// ascending segment id, resolving §9's open question per the spec's S6
// scenario.
package journal

import (
	"sort"
	"strconv"
	"sync"

	"github.com/claudefs/core/internal/metrics"
)

type CapacityLevel int

const (
	Normal CapacityLevel = iota
	Elevated
	High
	Critical
	Full
)

func (l CapacityLevel) String() string {
	switch l {
	case Normal:
		return "normal"
	case Elevated:
		return "elevated"
	case High:
		return "high"
	case Critical:
		return "critical"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

type TierOverride int

const (
	TierAuto TierOverride = iota
	TierFlash
	TierS3Forced
)

type Watermarks struct {
	LowPct      uint8
	HighPct     uint8
	CriticalPct uint8
}

func DefaultWatermarks() Watermarks { return Watermarks{LowPct: 60, HighPct: 80, CriticalPct: 95} }

type SegmentTracker struct {
	SegmentID      uint64
	SizeBytes      uint64
	CreatedAtSecs  uint64
	LastAccessSecs uint64
	S3Confirmed    bool
	Tier           TierOverride
}

// score computes age_since_last_access x size_bytes, with an S3-forced
// segment receiving maximum priority regardless of age/size.
func (s SegmentTracker) score(nowSecs uint64) (score uint64, forced bool) {
	if s.Tier == TierS3Forced {
		return ^uint64(0), true
	}
	age := uint64(0)
	if nowSecs > s.LastAccessSecs {
		age = nowSecs - s.LastAccessSecs
	}
	return age * s.SizeBytes, false
}

type CapacityTracker struct {
	mu         sync.Mutex
	deviceID   uint64
	totalBytes uint64
	usedBytes  uint64
	wm         Watermarks
	segments   map[uint64]*SegmentTracker
}

func NewCapacityTracker(deviceID, totalBytes uint64, wm Watermarks) *CapacityTracker {
	return &CapacityTracker{deviceID: deviceID, totalBytes: totalBytes, wm: wm, segments: make(map[uint64]*SegmentTracker)}
}

func (c *CapacityTracker) UpdateUsage(usedBytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if usedBytes > c.totalBytes {
		usedBytes = c.totalBytes
	}
	c.usedBytes = usedBytes
	var ratio float64
	if c.totalBytes > 0 {
		ratio = float64(c.usedBytes) / float64(c.totalBytes)
	}
	metrics.CapacityWatermark.WithLabelValues(strconv.FormatUint(c.deviceID, 10)).Set(ratio)
}

func (c *CapacityTracker) TrackSegment(s SegmentTracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := s
	c.segments[s.SegmentID] = &cp
}

func (c *CapacityTracker) UsagePct() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usagePctLocked()
}

func (c *CapacityTracker) usagePctLocked() uint8 {
	if c.totalBytes == 0 {
		return 100
	}
	pct := c.usedBytes * 100 / c.totalBytes
	if pct > 100 {
		pct = 100
	}
	return uint8(pct)
}

func (c *CapacityTracker) Level() CapacityLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levelLocked()
}

func (c *CapacityTracker) levelLocked() CapacityLevel {
	pct := c.usagePctLocked()
	switch {
	case pct >= 100:
		return Full
	case pct >= c.wm.CriticalPct:
		return Critical
	case pct >= c.wm.HighPct:
		return High
	case pct >= c.wm.LowPct:
		return Elevated
	default:
		return Normal
	}
}

// WriteThroughRequired reports whether the tracker is at Critical or
// above, in which case the write journal must bypass its deferral and go
// write-through.
func (c *CapacityTracker) WriteThroughRequired() bool {
	lvl := c.Level()
	return lvl == Critical || lvl == Full
}

// EvictionCandidates returns the top-n highest-scoring candidates among
// segments that are S3-confirmed and not Flash-pinned, ties broken by
// ascending segment id.
func (c *CapacityTracker) EvictionCandidates(n uint64, nowSecs uint64) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.levelLocked() < High {
		return nil
	}
	type scored struct {
		id    uint64
		score uint64
	}
	var candidates []scored
	for id, seg := range c.segments {
		if seg.Tier == TierFlash || !seg.S3Confirmed {
			continue
		}
		sc, _ := seg.score(nowSecs)
		candidates = append(candidates, scored{id: id, score: sc})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	if uint64(len(candidates)) > n {
		candidates = candidates[:n]
	}
	out := make([]uint64, len(candidates))
	for i, s := range candidates {
		out[i] = s.id
	}
	return out
}
