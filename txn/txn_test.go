package txn

import (
	"testing"
	"time"

	"github.com/claudefs/core/internal/ids"
	"github.com/claudefs/core/metajournal"
)

func newOp() metajournal.MetaOp {
	return metajournal.MetaOp{Kind: metajournal.OpRename, Inode: 7}
}

func TestAllCommitVotesMovesToCommitting(t *testing.T) {
	m := NewManager(time.Minute)
	id := m.Begin(1, []ids.ShardId{1, 2, 3}, newOp())

	if err := m.VoteCommit(id, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.VoteCommit(id, 2); err != nil {
		t.Fatal(err)
	}
	if st, _ := m.CheckVotes(id); st != Preparing {
		t.Fatalf("expected still Preparing with one vote outstanding, got %s", st)
	}
	if err := m.VoteCommit(id, 3); err != nil {
		t.Fatal(err)
	}
	st, err := m.CheckVotes(id)
	if err != nil {
		t.Fatal(err)
	}
	if st != Committing {
		t.Fatalf("expected Committing once all participants voted commit, got %s", st)
	}
	if err := m.Commit(id); err != nil {
		t.Fatal(err)
	}
	tx, err := m.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if tx.State != Committed {
		t.Fatalf("expected Committed, got %s", tx.State)
	}
}

func TestOneAbortVoteAbortsTransaction(t *testing.T) {
	m := NewManager(time.Minute)
	id := m.Begin(1, []ids.ShardId{1, 2}, newOp())

	if err := m.VoteCommit(id, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.VoteAbort(id, 2); err != nil {
		t.Fatal(err)
	}
	st, err := m.CheckVotes(id)
	if err != nil {
		t.Fatal(err)
	}
	if st != Aborting {
		t.Fatalf("expected Aborting after one abort vote, got %s", st)
	}
	if err := m.Abort(id); err != nil {
		t.Fatal(err)
	}
	tx, _ := m.Get(id)
	if tx.State != Aborted {
		t.Fatalf("expected Aborted, got %s", tx.State)
	}
}

func TestRepeatVoteIsIdempotent(t *testing.T) {
	m := NewManager(time.Minute)
	id := m.Begin(1, []ids.ShardId{1}, newOp())

	if err := m.VoteCommit(id, 1); err != nil {
		t.Fatal(err)
	}
	// A second, conflicting vote from the same participant must not
	// overturn the first.
	if err := m.VoteAbort(id, 1); err != nil {
		t.Fatal(err)
	}
	st, _ := m.CheckVotes(id)
	if st != Committing {
		t.Fatalf("expected first vote (commit) to stick, got %s", st)
	}
}

func TestCommitRejectedBeforeAllVotesIn(t *testing.T) {
	m := NewManager(time.Minute)
	id := m.Begin(1, []ids.ShardId{1, 2}, newOp())
	if err := m.VoteCommit(id, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(id); err == nil {
		t.Fatal("expected commit to be rejected while still Preparing")
	}
}

func TestCleanupCompletedRemovesTerminalOnly(t *testing.T) {
	m := NewManager(time.Minute)
	done := m.Begin(1, []ids.ShardId{1}, newOp())
	m.VoteCommit(done, 1)
	m.CheckVotes(done)
	m.Commit(done)

	pending := m.Begin(1, []ids.ShardId{1, 2}, newOp())
	m.VoteCommit(pending, 1)

	n := m.CleanupCompleted()
	if n != 1 {
		t.Fatalf("expected 1 cleaned up, got %d", n)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("expected the still-pending transaction to survive cleanup, got %d active", m.ActiveCount())
	}
	if _, err := m.Get(pending); err != nil {
		t.Fatal("pending transaction should still be retrievable")
	}
}

func TestCleanupTimedOutAbortsStale(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	id := m.Begin(1, []ids.ShardId{1, 2}, newOp())

	future := time.Now().Add(time.Second)
	timedOut := m.CleanupTimedOut(future)
	if len(timedOut) != 1 || timedOut[0] != id {
		t.Fatalf("expected stale transaction to be reported aborted, got %+v", timedOut)
	}
	tx, _ := m.Get(id)
	if tx.State != Aborted {
		t.Fatalf("expected Aborted, got %s", tx.State)
	}
}

func TestVoteFromNonParticipantRejected(t *testing.T) {
	m := NewManager(time.Minute)
	id := m.Begin(1, []ids.ShardId{1, 2}, newOp())
	if err := m.VoteCommit(id, 99); err == nil {
		t.Fatal("expected vote from non-participant shard to be rejected")
	}
}
