package segment

import (
	"bytes"
	"testing"

	"github.com/claudefs/core/alloc"
	"github.com/claudefs/core/internal/ids"
)

func TestRoundTripExtraction(t *testing.T) {
	p := New(2 << 20)
	var sealed *Segment
	ref := alloc.BlockRef{}
	payloads := [][]byte{
		[]byte("alpha"),
		[]byte("bravo-bravo"),
		[]byte("charlie-charlie-charlie"),
	}
	for i, data := range payloads {
		if s := p.AddEntry(ids.Sequence(i+1), ref, data, "auto"); s != nil {
			sealed = s
		}
	}
	final := p.Seal()
	if sealed != nil {
		t.Fatalf("did not expect a seal before target reached")
	}
	if final == nil {
		t.Fatal("expected a sealed segment from Seal()")
	}
	for i, want := range payloads {
		got := final.Extract(i)
		if !bytes.Equal(got, want) {
			t.Fatalf("entry %d: got %q want %q", i, got, want)
		}
	}
}

func TestSealsAtTarget(t *testing.T) {
	p := New(10) // tiny target forces seals quickly
	ref := alloc.BlockRef{}
	var seals int
	for i := 0; i < 5; i++ {
		if s := p.AddEntry(ids.Sequence(i+1), ref, []byte("123456"), "auto"); s != nil {
			seals++
			for j, e := range s.Entries {
				if !bytes.Equal(s.Extract(j), s.Payload[e.DataOffset:e.DataOffset+e.DataLen]) {
					t.Fatalf("sealed segment entry %d failed self-consistency", j)
				}
			}
		}
	}
	if seals == 0 {
		t.Fatal("expected at least one mid-stream seal given tiny target")
	}
}

func TestSealEmptyReturnsNil(t *testing.T) {
	p := New(2 << 20)
	if s := p.Seal(); s != nil {
		t.Fatal("expected nil seal on empty packer")
	}
}

func TestParityComputedOnSealWhenConfigured(t *testing.T) {
	parity, err := NewParity(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	p := New(2 << 20).WithParity(parity)
	ref := alloc.BlockRef{}
	p.AddEntry(ids.Sequence(1), ref, bytes.Repeat([]byte("x"), 256), "auto")
	sealed := p.Seal()
	if sealed == nil {
		t.Fatal("expected a sealed segment")
	}
	if len(sealed.ParityShards) != 6 {
		t.Fatalf("expected 4 data + 2 parity shards, got %d", len(sealed.ParityShards))
	}
	reconstructed := make([][]byte, len(sealed.ParityShards))
	copy(reconstructed, sealed.ParityShards)
	reconstructed[1] = nil
	reconstructed[5] = nil
	if err := parity.Reconstruct(reconstructed); err != nil {
		t.Fatalf("expected reconstruction from surviving shards to succeed: %v", err)
	}
	for i, want := range sealed.ParityShards {
		if !bytes.Equal(reconstructed[i], want) {
			t.Fatalf("shard %d: reconstruction mismatch", i)
		}
	}
}

func TestParityNotComputedWithoutConfig(t *testing.T) {
	p := New(2 << 20)
	ref := alloc.BlockRef{}
	p.AddEntry(ids.Sequence(1), ref, []byte("alpha"), "auto")
	sealed := p.Seal()
	if sealed.ParityShards != nil {
		t.Fatal("expected no parity shards when Packer has no Parity configured")
	}
}
