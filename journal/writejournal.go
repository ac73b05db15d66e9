// Package journal implements the write journal (§4.8.2), capacity
// tracker (§4.8.4), and device pool (§4.8.5) of the storage engine layer.
// The write journal is an in-memory, strictly-seq-ordered queue whose
// entries progress Pending -> LocalFlushed -> {Replicated ->} Committed,
// with front-of-queue draining only once entries commit in order.
// Grounded on the teacher's mutex-guarded, single-instance journal style
// (no global state, per §9) plus a github.com/seiflotfy/cuckoofilter
// dedup guard (teacher dependency) ahead of the exact pending index.
package journal

import (
	"container/list"
	"sync"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
	cuckoo "github.com/seiflotfy/cuckoofilter"
)

type EntryState int

const (
	Pending EntryState = iota
	LocalFlushed
	Replicated
	Committed
)

func (s EntryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case LocalFlushed:
		return "local_flushed"
	case Replicated:
		return "replicated"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

// rank gives the state's position in the monotonic ordering Pending <
// LocalFlushed < Replicated < Committed. The transitions themselves reject
// backward moves through explicit allowed-from states, not through rank.
func (s EntryState) rank() int { return int(s) }

type BlockRefLike struct {
	DeviceIdx int
	Offset4K  int64
}

type Entry struct {
	Seq           ids.Sequence
	BlockRef      BlockRefLike
	Data          []byte
	PlacementHint string
	State         EntryState
}

type Config struct {
	MaxPendingEntries  int
	MaxPendingBytes    int64
	ReplicationEnabled bool
}

// WriteJournal is the in-memory queue described above, guarded by a
// single mutex per §5's shared-resource policy (readers observe either
// the pre- or post-state of any mutation, never an intermediate one).
type WriteJournal struct {
	mu           sync.Mutex
	cfg          Config
	list         *list.List // of *Entry, ordered by append (== seq order)
	byS          map[ids.Sequence]*list.Element
	next         ids.Sequence
	pendingBytes int64

	dedup *cuckoo.Filter // guards against re-queueing an already-pending block ref
}

func New(cfg Config) *WriteJournal {
	return &WriteJournal{
		cfg:   cfg,
		list:  list.New(),
		byS:   make(map[ids.Sequence]*list.Element),
		dedup: cuckoo.NewFilter(1 << 16),
	}
}

func dedupKey(ref BlockRefLike) []byte {
	b := make([]byte, 12)
	for i := 0; i < 4; i++ {
		b[i] = byte(ref.DeviceIdx >> (8 * i))
	}
	for i := 0; i < 8; i++ {
		b[4+i] = byte(ref.Offset4K >> (8 * i))
	}
	return b
}

// Append adds a new Pending entry at the journal's tail and returns its
// assigned sequence number (dense, monotonically increasing from 1).
func (j *WriteJournal) Append(ref BlockRefLike, data []byte, hint string) (ids.Sequence, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := dedupKey(ref)
	if j.dedup.Lookup(key) {
		// probabilistic positive: fall through to the exact check below,
		// which is authoritative. A filter miss never happens for a true
		// duplicate, so only a confirmed exact match is rejected.
		for e := j.list.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*Entry)
			if entry.BlockRef == ref {
				return 0, &cferr.InvalidTransition{From: "pending", To: "duplicate-append"}
			}
		}
	}

	j.next++
	seq := j.next
	entry := &Entry{Seq: seq, BlockRef: ref, Data: data, PlacementHint: hint, State: Pending}
	el := j.list.PushBack(entry)
	j.byS[seq] = el
	j.pendingBytes += int64(len(data))
	j.dedup.Insert(key)
	return seq, nil
}

func (j *WriteJournal) transition(seq ids.Sequence, allowedFrom []EntryState, to EntryState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	el, ok := j.byS[seq]
	if !ok {
		return &cferr.InvalidTransition{From: "unknown", To: to.String()}
	}
	entry := el.Value.(*Entry)
	if entry.State == to {
		return nil // idempotent no-op
	}
	ok = false
	for _, from := range allowedFrom {
		if entry.State == from {
			ok = true
			break
		}
	}
	if !ok {
		return &cferr.InvalidTransition{From: entry.State.String(), To: to.String()}
	}
	entry.State = to
	return nil
}

func (j *WriteJournal) MarkLocalFlushed(seq ids.Sequence) error {
	return j.transition(seq, []EntryState{Pending}, LocalFlushed)
}

// MarkReplicated tightens the source's behavior per §9: it fails rather
// than warns when replication is disabled for this journal, and requires
// the entry to already be LocalFlushed (the spec's Pending ->
// LocalFlushed -> {Replicated} chain, never Pending -> Replicated).
func (j *WriteJournal) MarkReplicated(seq ids.Sequence) error {
	j.mu.Lock()
	enabled := j.cfg.ReplicationEnabled
	j.mu.Unlock()
	if !enabled {
		return &cferr.InvalidTransition{From: "replication-disabled", To: Replicated.String()}
	}
	return j.transition(seq, []EntryState{LocalFlushed}, Replicated)
}

// Commit transitions seq to Committed (valid only from LocalFlushed or
// Replicated), then drains contiguous Committed entries from the front of
// the queue. A commit in the middle does not reorder draining: earlier
// pending entries remain queued until they themselves commit.
func (j *WriteJournal) Commit(seq ids.Sequence) ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	el, ok := j.byS[seq]
	if !ok {
		return nil, &cferr.InvalidTransition{From: "unknown", To: Committed.String()}
	}
	entry := el.Value.(*Entry)
	if entry.State != LocalFlushed && entry.State != Replicated {
		return nil, &cferr.InvalidTransition{From: entry.State.String(), To: Committed.String()}
	}
	entry.State = Committed

	var drained []*Entry
	for {
		front := j.list.Front()
		if front == nil {
			break
		}
		fe := front.Value.(*Entry)
		if fe.State != Committed {
			break
		}
		j.list.Remove(front)
		delete(j.byS, fe.Seq)
		j.pendingBytes -= int64(len(fe.Data))
		drained = append(drained, fe)
	}
	return drained, nil
}

// NeedsFlush reports whether pending entries or bytes have crossed their
// configured limit.
func (j *WriteJournal) NeedsFlush() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cfg.MaxPendingEntries > 0 && j.list.Len() >= j.cfg.MaxPendingEntries {
		return true
	}
	if j.cfg.MaxPendingBytes > 0 && j.pendingBytes >= j.cfg.MaxPendingBytes {
		return true
	}
	return false
}

func (j *WriteJournal) PendingEntriesByState(state EntryState) []*Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*Entry
	for e := j.list.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*Entry)
		if entry.State == state {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out
}

type Stats struct {
	PendingCount int
	PendingBytes int64
	ByState      map[EntryState]int
}

func (j *WriteJournal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Stats{PendingCount: j.list.Len(), PendingBytes: j.pendingBytes, ByState: make(map[EntryState]int)}
	for e := j.list.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*Entry)
		s.ByState[entry.State]++
	}
	return s
}
