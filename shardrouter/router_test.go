package shardrouter

import (
	"testing"

	"github.com/claudefs/core/internal/ids"
)

func TestShardForInodeLocality(t *testing.T) {
	r := New(256)
	for ino := uint64(0); ino < 10_000; ino++ {
		got := r.ShardForInode(ids.InodeId(ino))
		want := ids.ShardId(ino % 256)
		if got != want {
			t.Fatalf("ino=%d: got shard %d want %d", ino, got, want)
		}
	}
}

func TestAssignShardRejectsEmpty(t *testing.T) {
	r := New(4)
	if err := r.AssignShard(0, nil); err == nil {
		t.Fatal("expected error assigning empty replica list")
	}
}

func TestUpdateLeaderValidity(t *testing.T) {
	r := New(4)
	n1, n2 := ids.NodeId(1), ids.NodeId(2)
	if err := r.AssignShard(0, []ids.NodeId{n1, n2}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateLeader(0, n1, 1); err != nil {
		t.Fatal(err)
	}
	got, err := r.LeaderForShard(0)
	if err != nil || got != n1 {
		t.Fatalf("got %v err %v, want %v", got, err, n1)
	}

	outsider := ids.NodeId(99)
	if err := r.UpdateLeader(0, outsider, 2); err == nil {
		t.Fatal("expected error promoting non-replica to leader")
	}
}

func TestRemoveNodeClearsLeaderAndReportsEmptyShards(t *testing.T) {
	r := New(2)
	n1, n2 := ids.NodeId(1), ids.NodeId(2)
	_ = r.AssignShard(0, []ids.NodeId{n1})
	_ = r.AssignShard(1, []ids.NodeId{n1, n2})
	_ = r.UpdateLeader(0, n1, 1)
	_ = r.UpdateLeader(1, n1, 1)

	empty := r.RemoveNode(n1)
	if len(empty) != 1 || empty[0] != 0 {
		t.Fatalf("expected shard 0 to need rebalance, got %v", empty)
	}
	if _, err := r.LeaderForShard(1); err == nil {
		t.Fatal("expected leader cleared on shard 1 after removing n1")
	}
	replicas, _ := r.ReplicasForShard(1)
	if len(replicas) != 1 || replicas[0] != n2 {
		t.Fatalf("expected n2 to remain on shard 1, got %v", replicas)
	}
}
