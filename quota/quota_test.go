package quota

import (
	"testing"

	"github.com/claudefs/core/kv"
)

func TestSetAndGetQuota(t *testing.T) {
	m := New()
	target := UserTarget(1000)
	m.SetQuota(target, Limit{MaxBytes: 1_000_000, MaxInodes: 1000})

	e, ok := m.GetQuota(target)
	if !ok {
		t.Fatal("expected quota to be found")
	}
	if e.Limit.MaxBytes != 1_000_000 || e.Limit.MaxInodes != 1000 {
		t.Fatalf("unexpected limit: %+v", e.Limit)
	}
}

func TestRemoveQuota(t *testing.T) {
	m := New()
	target := UserTarget(1000)
	m.SetQuota(target, Limit{MaxBytes: 1_000_000, MaxInodes: 1000})

	if !m.RemoveQuota(target) {
		t.Fatal("expected removal to report true")
	}
	if _, ok := m.GetQuota(target); ok {
		t.Fatal("expected quota to be gone")
	}
	if m.RemoveQuota(target) {
		t.Fatal("expected second removal to report false")
	}
}

func TestCheckQuotaWithinLimits(t *testing.T) {
	m := New()
	m.SetQuota(UserTarget(1000), Limit{MaxBytes: 1_000_000, MaxInodes: 1000})
	m.UpdateUsage(1000, 0, 500, 5)

	if err := m.CheckQuota(1000, 0, 100, 1); err != nil {
		t.Fatalf("expected within-limit check to pass, got %v", err)
	}
}

func TestCheckQuotaExceedsBytes(t *testing.T) {
	m := New()
	m.SetQuota(UserTarget(1000), Limit{MaxBytes: 1000, MaxInodes: 100})
	m.UpdateUsage(1000, 0, 900, 5)

	if err := m.CheckQuota(1000, 0, 200, 0); err == nil {
		t.Fatal("expected NoSpace for byte overage")
	}
}

func TestCheckQuotaExceedsInodes(t *testing.T) {
	m := New()
	m.SetQuota(UserTarget(1000), Limit{MaxBytes: 1_000_000, MaxInodes: 100})
	m.UpdateUsage(1000, 0, 0, 95)

	if err := m.CheckQuota(1000, 0, 0, 10); err == nil {
		t.Fatal("expected NoSpace for inode overage")
	}
}

func TestUpdateUsageAccumulates(t *testing.T) {
	m := New()
	target := UserTarget(1000)
	m.SetQuota(target, Limit{MaxBytes: 1_000_000, MaxInodes: 1000})
	m.UpdateUsage(1000, 0, 1000, 10)

	u, ok := m.GetUsage(target)
	if !ok {
		t.Fatal("expected usage to be tracked")
	}
	if u.BytesUsed != 1000 || u.InodesUsed != 10 {
		t.Fatalf("unexpected usage: %+v", u)
	}
}

func TestCheckQuotaUserAndGroupBothEnforced(t *testing.T) {
	m := New()
	m.SetQuota(UserTarget(1000), Limit{MaxBytes: 1_000_000, MaxInodes: 100})
	m.SetQuota(GroupTarget(500), Limit{MaxBytes: 500_000, MaxInodes: 50})

	if err := m.CheckQuota(1000, 500, 1000, 5); err != nil {
		t.Fatalf("expected within limits, got %v", err)
	}

	m.UpdateUsage(1000, 500, 900_000, 45)
	if err := m.CheckQuota(1000, 500, 200_000, 10); err == nil {
		t.Fatal("expected the user and group byte quotas to reject")
	}
}

func TestOverQuotaTargets(t *testing.T) {
	m := New()
	m.SetQuota(UserTarget(1000), Limit{MaxBytes: 1000, MaxInodes: 100})
	m.SetQuota(UserTarget(2000), Limit{MaxBytes: 2000, MaxInodes: 200})

	m.UpdateUsage(1000, 0, 500, 50)
	m.UpdateUsage(2000, 0, 3000, 300)

	over := m.OverQuotaTargets()
	found := map[Target]bool{}
	for _, t := range over {
		found[t] = true
	}
	if !found[UserTarget(2000)] {
		t.Fatal("expected user 2000 to be over quota")
	}
	if found[UserTarget(1000)] {
		t.Fatal("expected user 1000 to be within quota")
	}
}

func TestUnlimitedQuotaNeverRejects(t *testing.T) {
	m := New()
	m.SetQuota(UserTarget(1000), Unlimited())
	if err := m.CheckQuota(1000, 0, 1<<62, 1<<62); err != nil {
		t.Fatalf("expected unlimited quota to accept anything, got %v", err)
	}
}

func TestPersistAndLoadFromStore(t *testing.T) {
	store := kv.NewMemStore()
	m := NewWithStore(store)
	m.SetQuota(UserTarget(1000), Limit{MaxBytes: 1_000_000, MaxInodes: 1000})
	m.SetQuota(GroupTarget(500), Limit{MaxBytes: 2_000_000, MaxInodes: 200})

	m2 := NewWithStore(store)
	n, err := m2.LoadFromStore()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 loaded entries, got %d", n)
	}
	e, ok := m2.GetQuota(UserTarget(1000))
	if !ok || e.Limit.MaxBytes != 1_000_000 {
		t.Fatalf("unexpected reloaded entry: %+v", e)
	}
}

func TestPersistOnRemoveQuota(t *testing.T) {
	store := kv.NewMemStore()
	m := NewWithStore(store)
	m.SetQuota(UserTarget(1000), Limit{MaxBytes: 1_000_000, MaxInodes: 1000})
	if _, found, _ := store.Get("quota:user:1000"); !found {
		t.Fatal("expected quota to be persisted")
	}
	m.RemoveQuota(UserTarget(1000))
	if _, found, _ := store.Get("quota:user:1000"); found {
		t.Fatal("expected quota to be removed from the store")
	}
}

func TestNoStoreConfiguredIsFine(t *testing.T) {
	m := New()
	m.SetQuota(UserTarget(1000), Limit{MaxBytes: 1_000_000, MaxInodes: 1000})
	if _, err := m.LoadFromStore(); err == nil {
		t.Fatal("expected LoadFromStore to fail without a configured store")
	}
}
