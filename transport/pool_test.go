package transport

import (
	"testing"
	"time"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
)

func TestCheckoutCreatesUpToMaxPerNode(t *testing.T) {
	p := NewGatewayPool(PoolConfig{MaxPerNode: 2, MinPerNode: 0, MaxIdle: time.Minute, MaxCheckoutAttempts: 8})
	p.AddNode(1, 1)

	_, s1, err := p.Checkout()
	if err != nil {
		t.Fatal(err)
	}
	_, s2, err := p.Checkout()
	if err != nil {
		t.Fatal(err)
	}
	if s1.ID == s2.ID {
		t.Fatal("expected two distinct slots")
	}
	if _, _, err := p.Checkout(); err == nil {
		t.Fatal("expected checkout to fail once max_per_node is reached on the only node")
	}
}

func TestCheckoutReturnsIdleSlotBeforeCreatingNew(t *testing.T) {
	p := NewGatewayPool(DefaultPoolConfig())
	p.AddNode(1, 1)
	node, s, err := p.Checkout()
	if err != nil {
		t.Fatal(err)
	}
	p.Checkin(node, s)
	_, s2, err := p.Checkout()
	if err != nil {
		t.Fatal(err)
	}
	if s2.ID != s.ID {
		t.Fatalf("expected the idle slot to be reused, got a new slot %d vs %d", s2.ID, s.ID)
	}
}

func TestCheckoutExhaustionIsBounded(t *testing.T) {
	p := NewGatewayPool(PoolConfig{MaxPerNode: 1, MinPerNode: 0, MaxIdle: time.Minute, MaxCheckoutAttempts: 5})
	p.AddNode(1, 1)
	p.AddNode(2, 1)
	// saturate both nodes
	for i := 0; i < 2; i++ {
		if _, _, err := p.Checkout(); err != nil {
			t.Fatal(err)
		}
	}
	done := make(chan error, 1)
	go func() {
		_, _, err := p.Checkout()
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected NoSpace once every node is saturated")
		}
		if _, ok := err.(*cferr.NoSpace); !ok {
			t.Fatalf("expected NoSpace, got %T", err)
		}
	case <-time.After(time.Second):
		t.Fatal("checkout did not return; bounded-retry regression")
	}
}

func TestEvictIdlePreservesMinPerNode(t *testing.T) {
	p := NewGatewayPool(PoolConfig{MaxPerNode: 5, MinPerNode: 1, MaxIdle: time.Millisecond, MaxCheckoutAttempts: 8})
	p.AddNode(1, 1)
	node, s1, _ := p.Checkout()
	_, s2, _ := p.Checkout()
	p.Checkin(node, s1)
	p.Checkin(node, s2)

	time.Sleep(5 * time.Millisecond)
	evicted := p.EvictIdle()
	if evicted != 1 {
		t.Fatalf("expected exactly one eviction, leaving min_per_node=1 behind, got %d", evicted)
	}
}

func TestMarkUnhealthy(t *testing.T) {
	p := NewGatewayPool(DefaultPoolConfig())
	p.AddNode(ids.NodeId(1), 1)
	node, s, _ := p.Checkout()
	p.MarkUnhealthy(node, s, "connection reset")
	if s.State != SlotUnhealthy || s.Err == "" {
		t.Fatalf("expected SlotUnhealthy with a reason, got %+v", s)
	}
}
