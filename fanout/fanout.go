// Package fanout implements the multi-site fanout sender of §4.7:
// dispatching one batch to a set of target sites in parallel, with
// partial failure surfaced rather than masked. Grounded on the
// teacher's transport/bundle multi-stream dispatch, generalized from
// per-target streams to per-site conduits.
package fanout

import (
	"sync"
	"time"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/conduit"
	"github.com/claudefs/core/internal/ids"
)

// Result is the outcome of sending to a single target site.
type Result struct {
	SiteID      ids.SiteId
	Success     bool
	EntriesSent int
	Err         error
	LatencyUs   int64
}

// Summary aggregates a fanout's per-target results.
type Summary struct {
	Total      int
	Successful int
	Failed     int
	Results    []Result
}

func (s Summary) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

// Sender owns a map of SiteId -> *conduit.Conduit and dispatches batches
// to a chosen subset of them concurrently.
type Sender struct {
	mu       sync.RWMutex
	conduits map[ids.SiteId]*conduit.Conduit
}

func New() *Sender { return &Sender{conduits: make(map[ids.SiteId]*conduit.Conduit)} }

func (s *Sender) AddConduit(site ids.SiteId, c *conduit.Conduit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conduits[site] = c
}

func (s *Sender) RemoveConduit(site ids.SiteId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conduits, site)
}

// Dispatch sends entries to every target site in parallel and returns an
// aggregate Summary. A target with no configured conduit fails with a
// synthetic error rather than being silently skipped.
func (s *Sender) Dispatch(entries []conduit.JournalEntry, sourceSite ids.SiteId, targets []ids.SiteId) Summary {
	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	wg.Add(len(targets))

	s.mu.RLock()
	conduits := make(map[ids.SiteId]*conduit.Conduit, len(s.conduits))
	for k, v := range s.conduits {
		conduits[k] = v
	}
	s.mu.RUnlock()

	for i, target := range targets {
		i, target := i, target
		go func() {
			defer wg.Done()
			c, ok := conduits[target]
			if !ok {
				results[i] = Result{
					SiteID:  target,
					Success: false,
					Err:     &cferr.NetworkError{Reason: "no conduit configured for this site"},
				}
				return
			}
			start := time.Now()
			err := c.SendBatch(entries, sourceSite)
			latency := time.Since(start).Microseconds()
			results[i] = Result{
				SiteID:      target,
				Success:     err == nil,
				EntriesSent: len(entries),
				Err:         err,
				LatencyUs:   latency,
			}
		}()
	}
	wg.Wait()

	summary := Summary{Total: len(targets), Results: results}
	for _, r := range results {
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return summary
}
