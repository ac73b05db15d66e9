// Package metajournal implements the per-shard metadata journal of §4.5:
// a strictly seq-ordered append log, lazily iterable from a given seq,
// and prunable once the replication tracker confirms every peer site has
// observed entries up to some watermark. Grounded on the teacher's
// transport/bundle ordered-streaming style (§4.6's entries are exactly
// this journal's tail, fanned out by conduit/fanout).
package metajournal

import (
	"sync"

	"github.com/claudefs/core/internal/ids"
)

type MetaOpKind int

const (
	OpCreateInode MetaOpKind = iota
	OpSetAttr
	OpDeleteInode
	OpCreateEntry
	OpDeleteEntry
	OpRename
	OpLink
)

type MetaOp struct {
	Kind    MetaOpKind
	Inode   ids.InodeId
	Payload []byte
}

// Entry is a committed metadata journal record, per §3's JournalEntry
// (meta) definition.
type Entry struct {
	Seq       ids.Sequence
	Term      ids.Term
	Index     ids.LogIndex
	Timestamp int64 // wall-clock seconds since epoch
	Inode     ids.InodeId
	Op        MetaOp
}

// Journal is a single shard's strictly-ordered metadata log.
type Journal struct {
	mu            sync.Mutex
	entries       []Entry // ordered by Seq, contiguous from prunedThrough+1
	nextSeq       ids.Sequence
	prunedThrough ids.Sequence
}

func New() *Journal { return &Journal{} }

// Append assigns the next dense sequence number and stores the entry.
func (j *Journal) Append(op MetaOp, index ids.LogIndex, term ids.Term, wallClockSecs int64) ids.Sequence {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextSeq++
	e := Entry{Seq: j.nextSeq, Term: term, Index: index, Timestamp: wallClockSecs, Inode: op.Inode, Op: op}
	j.entries = append(j.entries, e)
	return e.Seq
}

func (j *Journal) LatestSequence() ids.Sequence {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq
}

// From returns every entry with Seq >= from, in order; a lazy generator
// is unnecessary in Go's memory model for this size, but the contract
// (iteration starting at an arbitrary seq) matches §4.5.
func (j *Journal) From(from ids.Sequence) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Entry
	for _, e := range j.entries {
		if e.Seq >= from {
			out = append(out, e)
		}
	}
	return out
}

// Prune drops entries with Seq <= through, once the replication tracker
// confirms every peer has observed them.
func (j *Journal) Prune(through ids.Sequence) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if through <= j.prunedThrough {
		return
	}
	kept := j.entries[:0:0]
	for _, e := range j.entries {
		if e.Seq > through {
			kept = append(kept, e)
		}
	}
	j.entries = kept
	j.prunedThrough = through
}
