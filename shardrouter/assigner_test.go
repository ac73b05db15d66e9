package shardrouter

import (
	"testing"

	"github.com/claudefs/core/internal/ids"
)

func TestAssignerRejectsTooFewNodes(t *testing.T) {
	a := NewAssigner()
	_, err := a.Distribute(4, 3, []ids.NodeId{1, 2})
	if err == nil {
		t.Fatal("expected error when fewer nodes than replication factor")
	}
}

func TestAssignerRejectsZeroReplicationFactor(t *testing.T) {
	a := NewAssigner()
	_, err := a.Distribute(4, 0, []ids.NodeId{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for zero replication factor")
	}
}

func TestAssignerNeverDoubleAssignsShard(t *testing.T) {
	a := NewAssigner()
	nodes := []ids.NodeId{1, 2, 3, 4, 5}
	out, err := a.Distribute(16, 3, nodes)
	if err != nil {
		t.Fatal(err)
	}
	for shard, replicas := range out {
		if len(replicas) != 3 {
			t.Fatalf("shard %d: expected 3 replicas, got %d", shard, len(replicas))
		}
		seen := map[ids.NodeId]bool{}
		for _, n := range replicas {
			if seen[n] {
				t.Fatalf("shard %d: node %d assigned twice", shard, n)
			}
			seen[n] = true
		}
	}
}
