package worm

import (
	"testing"
	"time"

	"github.com/claudefs/core/internal/ids"
)

func TestLockFileRequiresRetentionPolicy(t *testing.T) {
	m := New()
	if err := m.LockFile(1, 42); err == nil {
		t.Fatal("expected lock to fail without a configured retention policy")
	}
	m.SetRetentionPolicy(1, RetentionPolicy{MinRetention: time.Hour}, 42)
	if err := m.LockFile(1, 42); err != nil {
		t.Fatalf("expected lock to succeed once a policy is set, got %v", err)
	}
	state, ok := m.GetState(1)
	if !ok || !state.IsLocked() {
		t.Fatalf("expected Locked state, got %+v", state)
	}
}

func TestUnlockFailsBeforeRetentionExpires(t *testing.T) {
	m := New()
	m.SetRetentionPolicy(1, RetentionPolicy{MinRetention: time.Hour}, 42)
	if err := m.LockFile(1, 42); err != nil {
		t.Fatal(err)
	}
	if err := m.UnlockFile(1, 42); err == nil {
		t.Fatal("expected unlock to fail before retention expires")
	}
}

func TestUnlockSucceedsAfterRetentionExpires(t *testing.T) {
	m := New()
	m.SetRetentionPolicy(ids.InodeId(1), RetentionPolicy{MinRetention: -time.Hour}, 42)
	if err := m.LockFile(1, 42); err != nil {
		t.Fatal(err)
	}
	if err := m.UnlockFile(1, 42); err != nil {
		t.Fatalf("expected unlock to succeed once retention has elapsed, got %v", err)
	}
	state, _ := m.GetState(1)
	if state.IsProtected() {
		t.Fatal("expected Unlocked state after successful unlock")
	}
}

func TestLegalHoldBlocksUnlock(t *testing.T) {
	m := New()
	m.PlaceLegalHold(1, "case-123", 7)
	if err := m.UnlockFile(1, 7); err == nil {
		t.Fatal("expected unlock to be blocked by an active legal hold")
	}
	if err := m.ReleaseLegalHold(1, "wrong-id", 7); err == nil {
		t.Fatal("expected release with a mismatched hold id to fail")
	}
	if err := m.ReleaseLegalHold(1, "case-123", 7); err != nil {
		t.Fatalf("expected release with the matching hold id to succeed, got %v", err)
	}
	if m.IsImmutable(1) {
		t.Fatal("expected file to no longer be protected after release")
	}
}

func TestCanModifyAndCanDeleteReflectProtection(t *testing.T) {
	m := New()
	if !m.CanModify(99) || !m.CanDelete(99) {
		t.Fatal("expected an untracked inode to be freely modifiable/deletable")
	}
	m.PlaceLegalHold(1, "h", 1)
	if m.CanModify(1) || m.CanDelete(1) {
		t.Fatal("expected a legal-hold-protected inode to reject modify/delete")
	}
}

func TestAuditTrailRecordsEvents(t *testing.T) {
	m := New()
	m.SetRetentionPolicy(1, RetentionPolicy{MinRetention: time.Hour}, 42)
	m.LockFile(1, 42)
	trail := m.AuditTrail(1)
	if len(trail) != 2 {
		t.Fatalf("expected 2 audit events, got %d: %+v", len(trail), trail)
	}
	if trail[0].EventType != "set_retention_policy" || trail[1].EventType != "lock_file" {
		t.Fatalf("unexpected event ordering: %+v", trail)
	}
}

func TestWormCountOnlyCountsProtected(t *testing.T) {
	m := New()
	m.PlaceLegalHold(1, "a", 1)
	m.SetRetentionPolicy(2, RetentionPolicy{MinRetention: time.Hour}, 1)
	if m.WormCount() != 1 {
		t.Fatalf("expected only the legal-held inode to count, got %d", m.WormCount())
	}
}
