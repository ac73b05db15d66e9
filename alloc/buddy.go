// Package alloc implements the per-device buddy allocator of §4.8.1: four
// size classes (4K, 64K, 1M, 64M), free lists per class, splitting on
// exhaustion and coalescing on free. The classes are not binary-doubling
// (64K/4K = 16, 1M/64K = 16, 64M/1M = 64), so this is a multi-way buddy
// scheme: splitting a block of class c+1 yields `ratio` sibling blocks of
// class c sharing one parent offset, and coalescing requires every
// sibling in the group to be free before the parent re-forms. Grounded on
// the storage-layer bookkeeping style of the teacher's volume/vmd.go
// (explicit per-device state, no global allocator singleton).
package alloc

import (
	"strconv"
	"sync"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/metrics"
)

var classNames = [numClasses]string{Class4K: "4k", Class64K: "64k", Class1M: "1m", Class64M: "64m"}

type SizeClass int

const (
	Class4K SizeClass = iota
	Class64K
	Class1M
	Class64M
	numClasses
)

// ClassBytes is the block size, in bytes, of each size class.
var ClassBytes = [numClasses]int64{
	Class4K:  4 << 10,
	Class64K: 64 << 10,
	Class1M:  1 << 20,
	Class64M: 64 << 20,
}

const block4K = int64(4 << 10)

func classBlocks4K(c SizeClass) int64 { return ClassBytes[c] / block4K }

// ratio is how many class-c blocks make up one class-(c+1) block.
func ratio(c SizeClass) int64 { return classBlocks4K(c+1) / classBlocks4K(c) }

// BlockRef identifies an allocated region on a device.
type BlockRef struct {
	DeviceIdx int
	Offset4K  int64 // offset expressed in 4K units
	Class     SizeClass
}

func (b BlockRef) SizeBytes() int64 { return ClassBytes[b.Class] }

type Stats struct {
	TotalBlocks4K    int64
	FreeBlocks4K     int64
	FreeCountByClass [numClasses]int64
	TotalAllocations int64
	TotalFrees       int64
}

// Allocator manages the free lists for a single device.
type Allocator struct {
	mu            sync.Mutex
	deviceIdx     int
	totalBlocks4K int64
	free          [numClasses]map[int64]bool // class -> set of free offsets (4K units)
	allocated     map[int64]SizeClass        // offset4K -> class, for live allocations
	totalAllocs   int64
	totalFrees    int64
}

func New(deviceIdx int, totalBlocks4K int64) *Allocator {
	a := &Allocator{
		deviceIdx:     deviceIdx,
		totalBlocks4K: totalBlocks4K,
		allocated:     make(map[int64]SizeClass),
	}
	for c := range a.free {
		a.free[c] = make(map[int64]bool)
	}
	a.seed(0, totalBlocks4K)
	return a
}

// seed fills [startOffset4K, startOffset4K+blocks4K) with the largest
// classes that divide it evenly, largest class first.
func (a *Allocator) seed(startOffset4K, blocks4K int64) {
	offset := startOffset4K
	remaining := blocks4K
	for c := Class64M; c >= Class4K; c-- {
		cb := classBlocks4K(c)
		for remaining >= cb {
			a.free[c][offset] = true
			offset += cb
			remaining -= cb
		}
	}
}

// Allocate returns a BlockRef sized to the smallest class that covers
// size bytes; if that class's free list is empty, a larger block is
// split down (possibly recursively) until one is available.
func (a *Allocator) Allocate(size int64) (BlockRef, error) {
	class, err := classFor(size)
	if err != nil {
		return BlockRef{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	offset, ok := a.takeOrSplit(class)
	if !ok {
		return BlockRef{}, &cferr.NoSpace{Reason: "buddy allocator exhausted"}
	}
	a.allocated[offset] = class
	a.totalAllocs++
	a.publishFreeGaugesLocked()
	return BlockRef{DeviceIdx: a.deviceIdx, Offset4K: offset, Class: class}, nil
}

// publishFreeGaugesLocked reports each size class's free-block count to
// the allocator_free_blocks gauge; caller holds the lock.
func (a *Allocator) publishFreeGaugesLocked() {
	dev := strconv.Itoa(a.deviceIdx)
	for c := Class4K; c < numClasses; c++ {
		metrics.AllocatorFreeBlocks.WithLabelValues(dev, classNames[c]).Set(float64(len(a.free[c])))
	}
}

func classFor(size int64) (SizeClass, error) {
	for c := Class4K; c < numClasses; c++ {
		if size <= ClassBytes[c] {
			return c, nil
		}
	}
	return 0, &cferr.NoSpace{Reason: "requested size exceeds largest size class"}
}

// takeOrSplit returns a free offset of class c, splitting a larger block
// into `ratio(c)` siblings of class c if c's free list is empty.
func (a *Allocator) takeOrSplit(c SizeClass) (int64, bool) {
	if off, ok := a.popFree(c); ok {
		return off, true
	}
	if c+1 >= numClasses {
		return 0, false
	}
	parentOff, ok := a.takeOrSplit(c + 1)
	if !ok {
		return 0, false
	}
	cb := classBlocks4K(c)
	r := ratio(c)
	for i := int64(0); i < r; i++ {
		a.free[c][parentOff+i*cb] = true
	}
	off, _ := a.popFree(c)
	return off, true
}

func (a *Allocator) popFree(c SizeClass) (int64, bool) {
	for off := range a.free[c] {
		delete(a.free[c], off)
		return off, true
	}
	return 0, false
}

// Free returns a block to its class's free list and coalesces with its
// siblings (all other blocks from the same parent split) when every
// sibling is also free.
func (a *Allocator) Free(ref BlockRef) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.allocated[ref.Offset4K]; !ok {
		return &cferr.InvalidTransition{From: "allocated", To: "double-free"}
	}
	delete(a.allocated, ref.Offset4K)
	a.totalFrees++
	a.coalesce(ref.Class, ref.Offset4K)
	a.publishFreeGaugesLocked()
	return nil
}

// coalesce inserts offset into class c's free list, then merges upward
// into class c+1 for as long as every sibling in the parent group is free.
func (a *Allocator) coalesce(c SizeClass, offset int64) {
	a.free[c][offset] = true
	for c < numClasses-1 {
		cb := classBlocks4K(c)
		r := ratio(c)
		parentCB := classBlocks4K(c + 1)
		parentOff := offset - (offset % parentCB)
		allFree := true
		for i := int64(0); i < r; i++ {
			if !a.free[c][parentOff+i*cb] {
				allFree = false
				break
			}
		}
		if !allFree {
			return
		}
		for i := int64(0); i < r; i++ {
			delete(a.free[c], parentOff+i*cb)
		}
		c++
		offset = parentOff
		a.free[c][offset] = true
	}
}

// AllocatedBlocks4K returns the total size, in 4K units, of all live
// allocations — used alongside Stats().FreeBlocks4K to check the
// conservation invariant (§8 property 10).
func (a *Allocator) AllocatedBlocks4K() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for off, c := range a.allocated {
		_ = off
		total += classBlocks4K(c)
	}
	return total
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s Stats
	s.TotalBlocks4K = a.totalBlocks4K
	s.TotalAllocations = a.totalAllocs
	s.TotalFrees = a.totalFrees
	for c := Class4K; c < numClasses; c++ {
		n := int64(len(a.free[c]))
		s.FreeCountByClass[c] = n
		s.FreeBlocks4K += n * classBlocks4K(c)
	}
	return s
}
