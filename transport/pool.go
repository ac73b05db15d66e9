package transport

import (
	"sync"
	"time"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
)

// SlotState is a gateway pool connection slot's state, per §4.10.5.
type SlotState int

const (
	Idle SlotState = iota
	InUse
	SlotUnhealthy
)

func (s SlotState) String() string {
	switch s {
	case InUse:
		return "in_use"
	case SlotUnhealthy:
		return "unhealthy"
	default:
		return "idle"
	}
}

// Slot is one connection slot to a backend storage node.
type Slot struct {
	ID    uint64
	State SlotState
	Since time.Time
	Uses  uint64
	Err   string // set when State == SlotUnhealthy
}

type nodePool struct {
	node   ids.NodeId
	nextID uint64
	slots  []*Slot
	weight int // for weighted round-robin across nodes
}

type PoolConfig struct {
	MaxPerNode int
	MinPerNode int
	MaxIdle    time.Duration
	// MaxCheckoutAttempts bounds the outer weighted-round-robin retry
	// loop; the source's unbounded retry under certain topologies is the
	// bug §9 calls out, fixed here with an explicit cap.
	MaxCheckoutAttempts int
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxPerNode:          16,
		MinPerNode:          1,
		MaxIdle:             5 * time.Minute,
		MaxCheckoutAttempts: 32,
	}
}

// GatewayPool manages bounded connection slots per backend node for
// egress traffic, with weighted round-robin node selection on the outer
// checkout call.
type GatewayPool struct {
	cfg PoolConfig

	mu    sync.Mutex
	pools map[ids.NodeId]*nodePool
	order []ids.NodeId // round-robin cursor order
	rrPos int
}

func NewGatewayPool(cfg PoolConfig) *GatewayPool {
	return &GatewayPool{cfg: cfg, pools: make(map[ids.NodeId]*nodePool)}
}

// AddNode registers a backend node with the given round-robin weight
// (must be >= 1).
func (p *GatewayPool) AddNode(node ids.NodeId, weight int) {
	if weight < 1 {
		weight = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pools[node]; ok {
		return
	}
	p.pools[node] = &nodePool{node: node, weight: weight}
	p.order = append(p.order, node)
}

func (p *GatewayPool) RemoveNode(node ids.NodeId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pools, node)
	for i, n := range p.order {
		if n == node {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	if p.rrPos >= len(p.order) {
		p.rrPos = 0
	}
}

// Checkout selects a node via weighted round-robin and returns an idle
// slot on it, creating one if under max_per_node. The outer node-
// selection retry is explicitly bounded by MaxCheckoutAttempts: a
// topology where every node is momentarily saturated returns NoSpace
// rather than spinning forever, per §9's fix to the source's unbounded
// retry loop.
func (p *GatewayPool) Checkout() (ids.NodeId, *Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.order) == 0 {
		return 0, nil, &cferr.NetworkError{Reason: "gateway pool has no registered nodes"}
	}

	attempts := p.cfg.MaxCheckoutAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		node := p.nextNodeLocked()
		np := p.pools[node]
		if np == nil {
			continue
		}
		if slot := checkoutFromLocked(np, p.cfg.MaxPerNode); slot != nil {
			return node, slot, nil
		}
	}
	return 0, nil, &cferr.NoSpace{Reason: "gateway pool exhausted after bounded retry"}
}

// nextNodeLocked advances the weighted round-robin cursor; caller holds
// the lock.
func (p *GatewayPool) nextNodeLocked() ids.NodeId {
	node := p.order[p.rrPos%len(p.order)]
	np := p.pools[node]
	np.weight--
	if np.weight <= 0 {
		np.weight = 1
		p.rrPos++
	}
	return node
}

func checkoutFromLocked(np *nodePool, maxPerNode int) *Slot {
	for _, s := range np.slots {
		if s.State == Idle {
			s.State = InUse
			s.Since = time.Now()
			return s
		}
	}
	if len(np.slots) >= maxPerNode {
		return nil
	}
	np.nextID++
	s := &Slot{ID: np.nextID, State: InUse, Since: time.Now()}
	np.slots = append(np.slots, s)
	return s
}

// Checkin returns slot to Idle on node and records a use.
func (p *GatewayPool) Checkin(node ids.NodeId, slot *Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot.State = Idle
	slot.Since = time.Now()
	slot.Uses++
}

// MarkUnhealthy moves slot to SlotUnhealthy with the given reason.
func (p *GatewayPool) MarkUnhealthy(node ids.NodeId, slot *Slot, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot.State = SlotUnhealthy
	slot.Since = time.Now()
	slot.Err = reason
}

// EvictIdle removes slots idle longer than max_idle_ms on every node,
// while preserving min_per_node slots on each.
func (p *GatewayPool) EvictIdle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	evicted := 0
	now := time.Now()
	for _, np := range p.pools {
		before := len(np.slots)
		np.slots = evictStale(np.slots, p.cfg.MinPerNode, p.cfg.MaxIdle, now)
		evicted += before - len(np.slots)
	}
	return evicted
}

// evictStale removes idle-too-long slots while keeping at least
// minPerNode slots total on the node.
func evictStale(slots []*Slot, minPerNode int, maxIdle time.Duration, now time.Time) []*Slot {
	if len(slots) <= minPerNode {
		return slots
	}
	kept := make([]*Slot, 0, len(slots))
	total := len(slots)
	for _, s := range slots {
		stale := s.State == Idle && now.Sub(s.Since) > maxIdle
		if stale && total > minPerNode {
			total--
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
