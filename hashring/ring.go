// Package hashring implements the consistent-hash routing of §4.10.4: a
// virtual-node ring (default 150 vnodes per physical node) used by the
// transport layer to map keys to nodes, plus a ShardRouter atop it that
// also exposes modulo-based inode-to-shard mapping and round-robin
// rebalancing on topology change. Grounded on the teacher's xxhash-based
// digest (fs/hrw.go), adapted from aistore's rendezvous-hash HRW to the
// classic ring-with-vnodes algorithm the spec calls for.
package hashring

import (
	"fmt"
	"sort"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/claudefs/core/internal/ids"
)

const DefaultVirtualNodes = 150

type Ring struct {
	mu       sync.RWMutex
	vnodes   int
	ring     []uint64              // sorted vnode positions
	ownerOf  map[uint64]ids.NodeId // vnode position -> physical node
	physical map[ids.NodeId]bool
}

func New(vnodesPerNode int) *Ring {
	if vnodesPerNode <= 0 {
		vnodesPerNode = DefaultVirtualNodes
	}
	return &Ring{
		vnodes:   vnodesPerNode,
		ownerOf:  make(map[uint64]ids.NodeId),
		physical: make(map[ids.NodeId]bool),
	}
}

func digest(s string) uint64 {
	return xxhash.Checksum64(([]byte)(s))
}

func vnodeKey(node ids.NodeId, i int) string {
	return fmt.Sprintf("vnode/%d/%d", uint64(node), i)
}

// AddNode incrementally adds a node's virtual nodes to the ring.
func (r *Ring) AddNode(node ids.NodeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.physical[node] {
		return
	}
	r.physical[node] = true
	for i := 0; i < r.vnodes; i++ {
		pos := digest(vnodeKey(node, i))
		r.ownerOf[pos] = node
		r.ring = append(r.ring, pos)
	}
	sort.Slice(r.ring, func(i, j int) bool { return r.ring[i] < r.ring[j] })
}

// RemoveNode incrementally removes a node's virtual nodes from the ring.
func (r *Ring) RemoveNode(node ids.NodeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.physical[node] {
		return
	}
	delete(r.physical, node)
	filtered := r.ring[:0:0]
	for _, pos := range r.ring {
		if r.ownerOf[pos] == node {
			delete(r.ownerOf, pos)
			continue
		}
		filtered = append(filtered, pos)
	}
	r.ring = filtered
}

// Lookup returns the physical node owning key, or false if the ring is empty.
func (r *Ring) Lookup(key string) (ids.NodeId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.ring) == 0 {
		return 0, false
	}
	h := digest(key)
	idx := sort.Search(len(r.ring), func(i int) bool { return r.ring[i] >= h })
	if idx == len(r.ring) {
		idx = 0 // wrap
	}
	return r.ownerOf[r.ring[idx]], true
}

// LookupN returns up to n distinct physical nodes by walking the ring
// forward from key's position, per §8 property 13.
func (r *Ring) LookupN(key string, n int) []ids.NodeId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.ring) == 0 || n <= 0 {
		return nil
	}
	h := digest(key)
	start := sort.Search(len(r.ring), func(i int) bool { return r.ring[i] >= h })

	seen := make(map[ids.NodeId]bool, n)
	out := make([]ids.NodeId, 0, n)
	for i := 0; i < len(r.ring) && len(out) < n && len(out) < len(r.physical); i++ {
		idx := (start + i) % len(r.ring)
		node := r.ownerOf[r.ring[idx]]
		if seen[node] {
			continue
		}
		seen[node] = true
		out = append(out, node)
	}
	return out
}

func (r *Ring) PhysicalNodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.physical)
}
