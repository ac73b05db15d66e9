package transport

import (
	"testing"
	"time"
)

func TestHealthBecomesUnhealthyAfterConsecutiveFailures(t *testing.T) {
	h := NewConnHealth(HealthConfig{FailureThreshold: 3, RecoveryThreshold: 2, LatencyThreshold: time.Second})
	h.RecordFailure()
	h.RecordFailure()
	if h.Status() != Degraded {
		t.Fatalf("expected Degraded before threshold, got %s", h.Status())
	}
	h.RecordFailure()
	if h.Status() != Unhealthy {
		t.Fatalf("expected Unhealthy at threshold, got %s", h.Status())
	}
}

func TestHealthRecoversAfterConsecutiveSuccesses(t *testing.T) {
	h := NewConnHealth(HealthConfig{FailureThreshold: 1, RecoveryThreshold: 2, LatencyThreshold: time.Second})
	h.RecordFailure()
	h.RecordSuccess(time.Millisecond)
	if h.Status() != Degraded {
		t.Fatalf("expected one success to leave Degraded, got %s", h.Status())
	}
	h.RecordSuccess(time.Millisecond)
	if h.Status() != Healthy {
		t.Fatalf("expected Healthy after recovery_threshold successes, got %s", h.Status())
	}
}

func TestHighLatencyDegradesEvenOnSuccess(t *testing.T) {
	h := NewConnHealth(HealthConfig{FailureThreshold: 3, RecoveryThreshold: 5, LatencyThreshold: 10 * time.Millisecond})
	h.RecordSuccess(50 * time.Millisecond)
	if h.Status() != Degraded {
		t.Fatalf("expected Degraded on high-latency success, got %s", h.Status())
	}
}

func TestKeepAliveWarningThenDead(t *testing.T) {
	h := NewConnHealth(HealthConfig{MaxMissedBeats: 3})
	h.MissHeartbeat()
	if h.KeepAlive() != Warning {
		t.Fatalf("expected Warning after one miss, got %s", h.KeepAlive())
	}
	h.MissHeartbeat()
	h.MissHeartbeat()
	if h.KeepAlive() != Dead {
		t.Fatalf("expected Dead after max_missed, got %s", h.KeepAlive())
	}
	h.Heartbeat()
	if h.KeepAlive() != Active {
		t.Fatalf("expected Active after a received heartbeat, got %s", h.KeepAlive())
	}
}
