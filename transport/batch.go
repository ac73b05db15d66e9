package transport

import (
	"sync"
	"time"
)

// Request is one request buffered by the Batcher; Bytes is its wire size
// used against max_batch_bytes.
type Request struct {
	ID     uint64
	Opcode byte
	Bytes  int
	Body   []byte
}

// Envelope carries either requests or responses, per §4.10.3. The codec
// for wire encoding is unspecified by the spec; Envelope is the in-memory
// shape a caller would then hand to whatever codec it chooses.
type Envelope struct {
	ID        uint64
	Requests  []Request
	Responses []Request
}

type BatchConfig struct {
	MaxBatchSize   int
	MaxBatchBytes  int
	LingerDuration time.Duration
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize:   64,
		MaxBatchBytes:  1 << 20,
		LingerDuration: 10 * time.Millisecond,
	}
}

// Batcher buffers requests and emits an Envelope once max_batch_size or
// max_batch_bytes is reached, or LingerDuration elapses since the first
// buffered item. Flush is driven by the caller (Add reports whether an
// immediate emission is due, and Flush forces emission of a lingering
// partial batch), keeping the type free of its own goroutine/ticker so
// callers can drive it from whatever event loop they use.
type Batcher struct {
	cfg    BatchConfig
	nextID uint64

	mu        sync.Mutex
	pending   []Request
	bytes     int
	firstSeen time.Time
}

func NewBatcher(cfg BatchConfig) *Batcher {
	return &Batcher{cfg: cfg}
}

// Add buffers req and returns (envelope, true) if a size/byte threshold
// was crossed and a batch should be emitted now.
func (b *Batcher) Add(req Request) (Envelope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		b.firstSeen = time.Now()
	}
	b.pending = append(b.pending, req)
	b.bytes += req.Bytes

	if len(b.pending) >= b.cfg.MaxBatchSize || b.bytes >= b.cfg.MaxBatchBytes {
		return b.emitLocked(), true
	}
	return Envelope{}, false
}

// LingerExpired reports whether the oldest buffered item has lingered
// past LingerDuration; callers poll this (or use a ticker) to decide
// when to call Flush.
func (b *Batcher) LingerExpired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return false
	}
	return time.Since(b.firstSeen) >= b.cfg.LingerDuration
}

// Flush forces emission of whatever is currently buffered, even if under
// threshold. Returns false if nothing was pending.
func (b *Batcher) Flush() (Envelope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return Envelope{}, false
	}
	return b.emitLocked(), true
}

func (b *Batcher) emitLocked() Envelope {
	b.nextID++
	env := Envelope{ID: b.nextID, Requests: b.pending}
	b.pending = nil
	b.bytes = 0
	return env
}

// Priority is the five-level request priority of §4.10.3.
type Priority int

const (
	BestEffort Priority = iota
	Low
	Normal
	High
	Critical
)

// ClassifyOpcode maps an opcode's high byte to a Priority per §4.10.3.
func ClassifyOpcode(opcode byte) Priority {
	switch opcode {
	case 0x03:
		return Critical
	case 0x01:
		return High
	case 0x02:
		return Normal
	default:
		return BestEffort
	}
}

// priorityLevels lists levels from highest to lowest, for starvation-
// prevention's "lowest non-empty level" scan.
var priorityLevels = []Priority{Critical, High, Normal, Low, BestEffort}

// PriorityScheduler is a FIFO-within-level, priority-ordered queue with
// starvation prevention: after starvation_threshold consecutive dequeues
// drawn from Critical or High, the next dequeue is forced from the
// lowest non-empty level.
type PriorityScheduler struct {
	starvationThreshold int

	mu              sync.Mutex
	queues          map[Priority][]Request
	consecutiveHigh int
}

func NewPriorityScheduler(starvationThreshold int) *PriorityScheduler {
	return &PriorityScheduler{
		starvationThreshold: starvationThreshold,
		queues:              make(map[Priority][]Request),
	}
}

func (s *PriorityScheduler) Enqueue(p Priority, req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[p] = append(s.queues[p], req)
}

// Dequeue returns the next request to serve, honoring starvation
// prevention, or (Request{}, false) if every level is empty.
func (s *PriorityScheduler) Dequeue() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consecutiveHigh >= s.starvationThreshold {
		if req, ok := s.popLowestNonEmptyLocked(); ok {
			s.consecutiveHigh = 0
			return req, true
		}
	}

	for _, p := range priorityLevels {
		q := s.queues[p]
		if len(q) == 0 {
			continue
		}
		req := q[0]
		s.queues[p] = q[1:]
		if p == Critical || p == High {
			s.consecutiveHigh++
		} else {
			s.consecutiveHigh = 0
		}
		return req, true
	}
	return Request{}, false
}

// popLowestNonEmptyLocked pops from the lowest-priority non-empty level;
// caller holds the lock.
func (s *PriorityScheduler) popLowestNonEmptyLocked() (Request, bool) {
	for i := len(priorityLevels) - 1; i >= 0; i-- {
		p := priorityLevels[i]
		q := s.queues[p]
		if len(q) == 0 {
			continue
		}
		req := q[0]
		s.queues[p] = q[1:]
		return req, true
	}
	return Request{}, false
}

func (s *PriorityScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}
