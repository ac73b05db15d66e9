// Package shardrouter maps inodes to shards and shards to replica sets,
// per §4.1. Grounded on the original Rust shard.rs state machine and the
// teacher's reader/writer exclusion policy (§5: reads common and
// concurrent, updates exclusive).
package shardrouter

import (
	"sync"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
)

type ShardInfo struct {
	ShardID    ids.ShardId
	Replicas   []ids.NodeId
	Leader     *ids.NodeId
	LeaderTerm ids.Term
}

func (s ShardInfo) hasReplica(n ids.NodeId) bool {
	for _, r := range s.Replicas {
		if r == n {
			return true
		}
	}
	return false
}

// Router maps inode ids to shards and owns each shard's replica topology.
type Router struct {
	mu        sync.RWMutex
	numShards uint16
	shards    map[ids.ShardId]*ShardInfo
}

func New(numShards uint16) *Router {
	return &Router{
		numShards: numShards,
		shards:    make(map[ids.ShardId]*ShardInfo),
	}
}

// ShardForInode implements §8 property 1: shard_for_inode(ino) == ino mod N.
func (r *Router) ShardForInode(ino ids.InodeId) ids.ShardId {
	return ids.ShardId(uint64(ino) % uint64(r.numShards))
}

func (r *Router) NumShards() uint16 { return r.numShards }

func (r *Router) LeaderForShard(shard ids.ShardId) (ids.NodeId, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.shards[shard]
	if !ok || info.Leader == nil {
		return 0, &cferr.NotLeader{}
	}
	return *info.Leader, nil
}

func (r *Router) LeaderForInode(ino ids.InodeId) (ids.NodeId, error) {
	return r.LeaderForShard(r.ShardForInode(ino))
}

func (r *Router) ReplicasForShard(shard ids.ShardId) ([]ids.NodeId, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.shards[shard]
	if !ok {
		return nil, &cferr.NotLeader{}
	}
	out := make([]ids.NodeId, len(info.Replicas))
	copy(out, info.Replicas)
	return out, nil
}

// AssignShard sets the replica set for a shard. Per the spec's resolution
// of the source's ambiguity (§9 open question), this path rejects an
// empty replica list uniformly; UpdateShardInfo accepts an empty set, and
// RemoveNode can leave a shard with no replicas.
func (r *Router) AssignShard(shard ids.ShardId, replicas []ids.NodeId) error {
	if len(replicas) == 0 {
		return &cferr.InvalidTransition{From: "unassigned", To: "assign-shard-with-no-replicas"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]ids.NodeId, len(replicas))
	copy(cp, replicas)
	r.shards[shard] = &ShardInfo{ShardID: shard, Replicas: cp}
	return nil
}

// UpdateShardInfo overwrites a shard's replica set regardless of size,
// including an empty one. Nothing in this module calls it.
func (r *Router) UpdateShardInfo(info ShardInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := info
	cp.Replicas = append([]ids.NodeId(nil), info.Replicas...)
	r.shards[info.ShardID] = &cp
}

// UpdateLeader fails if node is not a replica of shard.
func (r *Router) UpdateLeader(shard ids.ShardId, node ids.NodeId, term ids.Term) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.shards[shard]
	if !ok {
		return &cferr.NotLeader{}
	}
	if !info.hasReplica(node) {
		return &cferr.PermissionDenied{Reason: "node is not a replica of shard"}
	}
	n := node
	info.Leader = &n
	info.LeaderTerm = term
	return nil
}

// ShardsOnNode enumerates shards for which node is a replica, per the
// original source's shards_on_node. RemoveNode does not call it.
func (r *Router) ShardsOnNode(node ids.NodeId) []ids.ShardId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ids.ShardId
	for id, info := range r.shards {
		if info.hasReplica(node) {
			out = append(out, id)
		}
	}
	return out
}

// RemoveNode strips node from every shard's replica set (and clears
// leadership if node was leader), returning shards whose replica count
// dropped to zero and thus need rebalancing.
func (r *Router) RemoveNode(node ids.NodeId) []ids.ShardId {
	r.mu.Lock()
	defer r.mu.Unlock()
	var needsRebalance []ids.ShardId
	for id, info := range r.shards {
		if !info.hasReplica(node) {
			continue
		}
		kept := info.Replicas[:0:0]
		for _, n := range info.Replicas {
			if n != node {
				kept = append(kept, n)
			}
		}
		info.Replicas = kept
		if info.Leader != nil && *info.Leader == node {
			info.Leader = nil
		}
		if len(info.Replicas) == 0 {
			needsRebalance = append(needsRebalance, id)
		}
	}
	return needsRebalance
}

func (r *Router) AllShards() []ShardInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ShardInfo, 0, len(r.shards))
	for _, info := range r.shards {
		cp := *info
		cp.Replicas = append([]ids.NodeId(nil), info.Replicas...)
		out = append(out, cp)
	}
	return out
}
