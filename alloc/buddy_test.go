package alloc

import (
	"math/rand"
	"testing"
)

func totalBlocksFor(mb int64) int64 { return (mb << 20) / block4K }

func TestConservationInvariant(t *testing.T) {
	a := New(0, totalBlocksFor(256))
	var refs []BlockRef
	sizes := []int64{4 << 10, 64 << 10, 1 << 20}
	for i := 0; i < 50; i++ {
		size := sizes[i%len(sizes)]
		ref, err := a.Allocate(size)
		if err != nil {
			t.Fatalf("allocate %d: %v", size, err)
		}
		refs = append(refs, ref)
		checkConservation(t, a)
	}
	rand.Shuffle(len(refs), func(i, j int) { refs[i], refs[j] = refs[j], refs[i] })
	for _, ref := range refs {
		if err := a.Free(ref); err != nil {
			t.Fatalf("free: %v", err)
		}
		checkConservation(t, a)
	}
	// after freeing everything it should all coalesce back to full capacity
	stats := a.Stats()
	if stats.FreeBlocks4K != totalBlocksFor(256) {
		t.Fatalf("expected full coalesce back to capacity, got free=%d want=%d", stats.FreeBlocks4K, totalBlocksFor(256))
	}
}

func checkConservation(t *testing.T, a *Allocator) {
	t.Helper()
	stats := a.Stats()
	allocated := a.AllocatedBlocks4K()
	if stats.FreeBlocks4K+allocated != stats.TotalBlocks4K {
		t.Fatalf("conservation violated: free=%d allocated=%d total=%d", stats.FreeBlocks4K, allocated, stats.TotalBlocks4K)
	}
}

func TestOffsetAlignment(t *testing.T) {
	a := New(0, totalBlocksFor(256))
	ref, err := a.Allocate(64 << 10)
	if err != nil {
		t.Fatal(err)
	}
	cb := classBlocks4K(ref.Class)
	if ref.Offset4K%cb != 0 {
		t.Fatalf("offset %d not aligned to class size %d (4K units)", ref.Offset4K, cb)
	}
	if ref.Offset4K < 0 || ref.Offset4K >= a.totalBlocks4K {
		t.Fatalf("offset %d out of device range [0,%d)", ref.Offset4K, a.totalBlocks4K)
	}
}

func TestDoubleFreeRejected(t *testing.T) {
	a := New(0, totalBlocksFor(8))
	ref, err := a.Allocate(4 << 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ref); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ref); err == nil {
		t.Fatal("expected error on double free")
	}
}

func TestExhaustionReturnsNoSpace(t *testing.T) {
	a := New(0, totalBlocksFor(1)) // 1MB device
	var refs []BlockRef
	for i := 0; i < 16; i++ {
		ref, err := a.Allocate(64 << 10)
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		refs = append(refs, ref)
	}
	if _, err := a.Allocate(64 << 10); err == nil {
		t.Fatal("expected NoSpace once device is exhausted")
	}
}
