package transport

import (
	"sync"
	"time"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/clog"
	"github.com/claudefs/core/internal/metrics"
)

var log = clog.New("transport")

// CircuitState is the breaker's state per §4.10.2 and §9's ConduitState-
// style explicit enumeration requirement.
type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

type CircuitConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenDuration     time.Duration
	CallTimeout      time.Duration
}

func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenDuration:     30 * time.Second,
		CallTimeout:      5 * time.Second,
	}
}

// Breaker is a per-endpoint circuit breaker. Monotonic time (time.Now, a
// process-relative clock) drives the Open-duration window, per §9's
// separation of monotonic timing from wall-clock record-keeping.
type Breaker struct {
	cfg      CircuitConfig
	endpoint string

	mu               sync.Mutex
	state            CircuitState
	failures         int
	successes        int
	openedAt         time.Time
	halfOpenInFlight bool
}

func NewBreaker(endpoint string, cfg CircuitConfig) *Breaker {
	return &Breaker{cfg: cfg, endpoint: endpoint, state: Closed}
}

func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed, advancing Open -> HalfOpen
// once open_duration_ms has elapsed. Returns CircuitOpen if the call must
// be rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return nil
	case Open:
		if time.Since(b.openedAt) < b.cfg.OpenDuration {
			return &cferr.CircuitOpen{Endpoint: b.endpoint}
		}
		b.state = HalfOpen
		b.successes = 0
		b.halfOpenInFlight = true
		return nil
	case HalfOpen:
		if b.halfOpenInFlight {
			return &cferr.CircuitOpen{Endpoint: b.endpoint}
		}
		b.halfOpenInFlight = true
		return nil
	}
	return nil
}

// Call runs fn under the breaker, counting an elapsed time beyond
// CallTimeout as a failure even if fn eventually returns nil.
func (b *Breaker) Call(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err == nil && elapsed > b.cfg.CallTimeout {
		err = &cferr.Timeout{Op: b.endpoint}
	}
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenInFlight = false
	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenInFlight = false
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	case Closed:
		b.failures = 0
	}
}

// trip moves the breaker into Open; caller holds the lock.
func (b *Breaker) trip() {
	b.state = Open
	b.failures = 0
	b.successes = 0
	b.openedAt = time.Now()
	metrics.CircuitBreakerTrips.WithLabelValues(b.endpoint).Inc()
	log.Warnf("circuit breaker for %s tripped open", b.endpoint)
}
