package hashring

import "github.com/claudefs/core/internal/ids"

// ShardRouter sits atop a consistent-hash Ring for the transport layer's
// own purposes (gateway egress routing), distinct from the authoritative
// metadata shardrouter.Router of §4.1. It additionally exposes a simple
// modulo-based inode-to-shard mapping, and rebalances shard ownership
// round-robin over whichever nodes are currently live whenever the
// topology changes.
type ShardRouter struct {
	ring      *Ring
	numShards uint16
	owners    map[ids.ShardId]ids.NodeId
}

func NewShardRouter(numShards uint16, vnodesPerNode int) *ShardRouter {
	return &ShardRouter{
		ring:      New(vnodesPerNode),
		numShards: numShards,
		owners:    make(map[ids.ShardId]ids.NodeId),
	}
}

func (sr *ShardRouter) ShardForInode(ino ids.InodeId) ids.ShardId {
	return ids.ShardId(uint64(ino) % uint64(sr.numShards))
}

// rebalance assigns every shard round-robin over the currently live node
// set, in the order liveNodes lists them (the slice is not sorted here).
func (sr *ShardRouter) rebalance(liveNodes []ids.NodeId) {
	sr.owners = make(map[ids.ShardId]ids.NodeId, sr.numShards)
	if len(liveNodes) == 0 {
		return
	}
	for s := uint16(0); s < sr.numShards; s++ {
		sr.owners[ids.ShardId(s)] = liveNodes[int(s)%len(liveNodes)]
	}
}

func (sr *ShardRouter) AddNode(node ids.NodeId, liveNodes []ids.NodeId) {
	sr.ring.AddNode(node)
	sr.rebalance(liveNodes)
}

func (sr *ShardRouter) RemoveNode(node ids.NodeId, liveNodes []ids.NodeId) {
	sr.ring.RemoveNode(node)
	sr.rebalance(liveNodes)
}

func (sr *ShardRouter) OwnerOfShard(shard ids.ShardId) (ids.NodeId, bool) {
	n, ok := sr.owners[shard]
	return n, ok
}

func (sr *ShardRouter) Ring() *Ring { return sr.ring }
