package shardrouter

import (
	"sort"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
)

// Assigner computes an initial balanced assignment of
// num_shards x replication_factor replicas across a node set. Placement
// prefers primary-by-shard-index for locality (shard i's first replica is
// nodes[i % len(nodes)]) and fills remaining replica slots by highest
// remaining quota, never assigning the same shard to a node twice.
type Assigner struct{}

func NewAssigner() *Assigner { return &Assigner{} }

// Distribute returns, per shard, the assigned replica node list.
func (a *Assigner) Distribute(numShards uint16, replicationFactor int, nodes []ids.NodeId) (map[ids.ShardId][]ids.NodeId, error) {
	if replicationFactor <= 0 {
		return nil, &cferr.InvalidTransition{From: "unassigned", To: "zero-replication-factor"}
	}
	if len(nodes) < replicationFactor {
		return nil, &cferr.InvalidTransition{From: "unassigned", To: "insufficient-nodes"}
	}

	n := len(nodes)
	remainingQuota := make(map[ids.NodeId]int, n)
	totalSlots := int(numShards) * replicationFactor
	base := totalSlots / n
	extra := totalSlots % n
	// Nodes listed earlier absorb the remainder, matching the
	// primary-by-shard-index locality preference below.
	for i, node := range nodes {
		q := base
		if i < extra {
			q++
		}
		remainingQuota[node] = q
	}

	out := make(map[ids.ShardId][]ids.NodeId, numShards)
	for s := uint16(0); s < numShards; s++ {
		shard := ids.ShardId(s)
		assigned := make(map[ids.NodeId]bool, replicationFactor)
		replicas := make([]ids.NodeId, 0, replicationFactor)

		primary := nodes[int(s)%n]
		replicas = append(replicas, primary)
		assigned[primary] = true
		remainingQuota[primary]--

		for len(replicas) < replicationFactor {
			candidates := make([]ids.NodeId, 0, n)
			for _, node := range nodes {
				if !assigned[node] {
					candidates = append(candidates, node)
				}
			}
			sort.Slice(candidates, func(i, j int) bool {
				if remainingQuota[candidates[i]] != remainingQuota[candidates[j]] {
					return remainingQuota[candidates[i]] > remainingQuota[candidates[j]]
				}
				return candidates[i] < candidates[j]
			})
			pick := candidates[0]
			replicas = append(replicas, pick)
			assigned[pick] = true
			remainingQuota[pick]--
		}
		out[shard] = replicas
	}
	return out, nil
}
