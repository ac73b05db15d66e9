package fanout

import (
	"testing"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/conduit"
	"github.com/claudefs/core/internal/ids"
)

func TestDispatchAllSucceed(t *testing.T) {
	s := New()
	for _, site := range []ids.SiteId{1, 2, 3} {
		s.AddConduit(site, conduit.New(conduit.DefaultConfig(0, site), func(conduit.EntryBatch) error { return nil }))
	}
	summary := s.Dispatch(nil, 0, []ids.SiteId{1, 2, 3})
	if summary.Total != 3 || summary.Successful != 3 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestDispatchMissingConduitCountsAsFailure(t *testing.T) {
	s := New()
	s.AddConduit(1, conduit.New(conduit.DefaultConfig(0, 1), func(conduit.EntryBatch) error { return nil }))
	summary := s.Dispatch(nil, 0, []ids.SiteId{1, 2})
	if summary.Successful != 1 || summary.Failed != 1 {
		t.Fatalf("expected 1 success and 1 failure, got %+v", summary)
	}
	var sawMissing bool
	for _, r := range summary.Results {
		if r.SiteID == 2 {
			if r.Success {
				t.Fatal("expected missing conduit target to fail")
			}
			if _, ok := r.Err.(*cferr.NetworkError); !ok {
				t.Fatalf("expected a synthetic NetworkError, got %T", r.Err)
			}
			sawMissing = true
		}
	}
	if !sawMissing {
		t.Fatal("expected a result entry for the missing-conduit target")
	}
}

func TestDispatchPartialFailureSurfacedNotMasked(t *testing.T) {
	s := New()
	s.AddConduit(1, conduit.New(conduit.DefaultConfig(0, 1), func(conduit.EntryBatch) error { return nil }))
	s.AddConduit(2, conduit.New(conduit.DefaultConfig(0, 2), func(conduit.EntryBatch) error {
		return &cferr.NetworkError{Reason: "down"}
	}))
	summary := s.Dispatch(nil, 0, []ids.SiteId{1, 2})
	if summary.FailureRate() != 0.5 {
		t.Fatalf("expected a 0.5 failure rate, got %v", summary.FailureRate())
	}
}
