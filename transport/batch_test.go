package transport

import (
	"testing"
	"time"
)

func TestBatcherEmitsOnMaxSize(t *testing.T) {
	b := NewBatcher(BatchConfig{MaxBatchSize: 2, MaxBatchBytes: 1 << 20, LingerDuration: time.Hour})
	if _, emit := b.Add(Request{ID: 1}); emit {
		t.Fatal("expected no emission on first item")
	}
	env, emit := b.Add(Request{ID: 2})
	if !emit || len(env.Requests) != 2 {
		t.Fatalf("expected a 2-item batch emission, got emit=%v env=%+v", emit, env)
	}
}

func TestBatcherEmitsOnMaxBytes(t *testing.T) {
	b := NewBatcher(BatchConfig{MaxBatchSize: 1000, MaxBatchBytes: 100, LingerDuration: time.Hour})
	env, emit := b.Add(Request{ID: 1, Bytes: 150})
	if !emit || len(env.Requests) != 1 {
		t.Fatalf("expected immediate emission once max_batch_bytes is exceeded, got %+v", env)
	}
}

func TestBatcherLingerExpiry(t *testing.T) {
	b := NewBatcher(BatchConfig{MaxBatchSize: 1000, MaxBatchBytes: 1 << 20, LingerDuration: 5 * time.Millisecond})
	b.Add(Request{ID: 1})
	if b.LingerExpired() {
		t.Fatal("expected linger not yet expired")
	}
	time.Sleep(10 * time.Millisecond)
	if !b.LingerExpired() {
		t.Fatal("expected linger expired")
	}
	env, ok := b.Flush()
	if !ok || len(env.Requests) != 1 {
		t.Fatalf("expected Flush to emit the lingering item, got %+v", env)
	}
	if _, ok := b.Flush(); ok {
		t.Fatal("expected a second Flush with nothing pending to report false")
	}
}

func TestClassifyOpcode(t *testing.T) {
	cases := []struct {
		op   byte
		want Priority
	}{
		{0x03, Critical},
		{0x01, High},
		{0x02, Normal},
		{0x99, BestEffort},
	}
	for _, c := range cases {
		if got := ClassifyOpcode(c.op); got != c.want {
			t.Fatalf("ClassifyOpcode(%#x) = %v, want %v", c.op, got, c.want)
		}
	}
}

func TestPrioritySchedulerOrdersByLevel(t *testing.T) {
	s := NewPriorityScheduler(100)
	s.Enqueue(BestEffort, Request{ID: 1})
	s.Enqueue(Critical, Request{ID: 2})
	s.Enqueue(Normal, Request{ID: 3})

	req, ok := s.Dequeue()
	if !ok || req.ID != 2 {
		t.Fatalf("expected Critical first, got %+v", req)
	}
	req, _ = s.Dequeue()
	if req.ID != 3 {
		t.Fatalf("expected Normal next, got %+v", req)
	}
	req, _ = s.Dequeue()
	if req.ID != 1 {
		t.Fatalf("expected BestEffort last, got %+v", req)
	}
}

func TestPrioritySchedulerStarvationPrevention(t *testing.T) {
	s := NewPriorityScheduler(2)
	for i := 0; i < 5; i++ {
		s.Enqueue(Critical, Request{ID: uint64(i + 100)})
	}
	s.Enqueue(BestEffort, Request{ID: 1})

	first, _ := s.Dequeue()
	second, _ := s.Dequeue()
	if first.ID == 1 || second.ID == 1 {
		t.Fatal("BestEffort should not be served before starvation threshold is hit")
	}
	third, _ := s.Dequeue()
	if third.ID != 1 {
		t.Fatalf("expected the forced low-priority dequeue after starvation_threshold Critical dequeues, got %+v", third)
	}
}
