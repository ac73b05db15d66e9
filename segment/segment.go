// Package segment implements the segment packer of §4.8.3: buffers small
// write-journal entries into ~2MB segments, sealing the current segment
// and starting a new one once adding an entry would exceed the target.
// Grounded on the teacher's memsys slab-buffering style (accumulate, then
// hand off a sealed, self-describing chunk).
package segment

import (
	"github.com/claudefs/core/alloc"
	"github.com/claudefs/core/internal/clog"
	"github.com/claudefs/core/internal/ids"
)

var log = clog.New("segment")

// EntryMeta describes one packed entry's placement within a sealed
// segment's contiguous payload.
type EntryMeta struct {
	Sequence      ids.Sequence
	BlockRef      alloc.BlockRef
	DataOffset    int64
	DataLen       int64
	PlacementHint string
}

type Segment struct {
	Seq     uint64 // monotonically increasing segment id within the packer
	Entries []EntryMeta
	Payload []byte

	// ParityShards holds the erasure-coded shards for this segment's
	// Payload, computed at seal time when the owning Packer carries a
	// *Parity config and the payload is large enough to split. Nil when
	// parity is not configured or the payload was too small to shard.
	ParityShards [][]byte
}

// Extract returns the original bytes for entry i, sliced from the payload
// at the entry's recorded offset and length; the bounds are not checked
// beyond the slice expression itself.
func (s *Segment) Extract(i int) []byte {
	e := s.Entries[i]
	return s.Payload[e.DataOffset : e.DataOffset+e.DataLen]
}

// Packer accumulates entries into a segment targeting targetBytes.
type Packer struct {
	targetBytes int64
	nextSeq     uint64
	cur         *Segment

	// parity, when set via WithParity, computes erasure-coded shards for
	// every segment this Packer seals, per §3's "optionally computes
	// parity shards for sealed segments crossing sites."
	parity *Parity
}

func New(targetBytes int64) *Packer {
	if targetBytes <= 0 {
		targetBytes = 2 << 20
	}
	return &Packer{targetBytes: targetBytes}
}

// WithParity configures p to compute erasure-coded parity shards for
// every segment it seals from here on.
func (p *Packer) WithParity(parity *Parity) *Packer {
	p.parity = parity
	return p
}

func (p *Packer) ensureCurrent() {
	if p.cur == nil {
		p.nextSeq++
		p.cur = &Segment{Seq: p.nextSeq}
	}
}

// AddEntry appends to the current segment; if adding would exceed the
// segment target, the current segment is sealed and returned (non-nil)
// before a new one is begun to hold the new entry.
func (p *Packer) AddEntry(seq ids.Sequence, ref alloc.BlockRef, data []byte, hint string) (sealed *Segment) {
	p.ensureCurrent()
	if len(p.cur.Payload) > 0 && int64(len(p.cur.Payload)+len(data)) > p.targetBytes {
		sealed = p.cur
		p.cur = nil
		p.ensureCurrent()
		p.computeParity(sealed)
	}
	off := int64(len(p.cur.Payload))
	p.cur.Payload = append(p.cur.Payload, data...)
	p.cur.Entries = append(p.cur.Entries, EntryMeta{
		Sequence:      seq,
		BlockRef:      ref,
		DataOffset:    off,
		DataLen:       int64(len(data)),
		PlacementHint: hint,
	})
	return sealed
}

// Seal returns the current segment if non-empty, resetting the packer to
// begin a fresh one; returns nil if nothing has been buffered.
func (p *Packer) Seal() *Segment {
	if p.cur == nil || len(p.cur.Entries) == 0 {
		return nil
	}
	s := p.cur
	p.cur = nil
	p.computeParity(s)
	return s
}

// computeParity fills s.ParityShards when the packer carries a parity
// config and the payload is large enough to split across DataShards.
// Encode failures (payload smaller than DataShards) are logged and
// otherwise swallowed: parity is a replication optimization, not a
// correctness requirement, per §3.
func (p *Packer) computeParity(s *Segment) {
	if p.parity == nil || len(s.Payload) == 0 {
		return
	}
	if len(s.Payload) < p.parity.DataShards {
		log.Debugf("segment %d too small for %d data shards, skipping parity", s.Seq, p.parity.DataShards)
		return
	}
	shards, err := p.parity.Encode(s.Payload)
	if err != nil {
		log.Warnf("segment %d parity encode failed: %v", s.Seq, err)
		return
	}
	s.ParityShards = shards
}
