// Package conduit implements the bidirectional, ordered inter-site
// channel of §4.6. Grounded on the teacher's transport/bundle stream
// bundle (github.com/NVIDIA/aistore/transport/bundle): a reconnect-aware
// send path with atomically updated statistics counters, generalized
// here from aistore's intra-cluster object stream to cross-site
// replication batches. Wire transport itself is out of this core's
// detailed spec (§9); this type owns the state machine, backoff, and
// stats around whatever transport a caller plugs in via SendFunc.
package conduit

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/clog"
	"github.com/claudefs/core/internal/ids"
	"github.com/claudefs/core/internal/metrics"
)

var log = clog.New("conduit")

type ConnState int

const (
	Connected ConnState = iota
	Reconnecting
	Shutdown
)

func (s ConnState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// JournalEntry is the narrow shape a batch moves: the per-shard
// metadata journal entries of §4.5, already sequenced.
type JournalEntry struct {
	Shard ids.ShardId
	Seq   ids.Sequence
	Data  []byte
}

// EntryBatch groups ordered entries from a single shard, per §4.6.
type EntryBatch struct {
	SourceSiteID ids.SiteId
	Entries      []JournalEntry
	BatchSeq     uint64
}

type Config struct {
	LocalSiteID  ids.SiteId
	RemoteSiteID ids.SiteId
	RemoteAddrs  []string
	MaxBatchSize int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration // max_reconnect_delay_ms
}

func DefaultConfig(local, remote ids.SiteId) Config {
	return Config{
		LocalSiteID:    local,
		RemoteSiteID:   remote,
		MaxBatchSize:   256,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// SendFunc performs the actual network send of one batch; conduit is
// agnostic to the wire protocol used.
type SendFunc func(batch EntryBatch) error

type Stats struct {
	BatchesSent     atomic.Uint64
	EntriesSent     atomic.Uint64
	BatchesReceived atomic.Uint64
	EntriesReceived atomic.Uint64
	SendErrors      atomic.Uint64
	Reconnects      atomic.Uint64
}

// Conduit is one direction of a site-to-site channel; a bidirectional
// link per §4.6 is two independent Conduits sharing a Config.
type Conduit struct {
	cfg  Config
	send SendFunc

	mu      sync.Mutex
	state   ConnState
	attempt int
	nextSeq uint64
	inbound []EntryBatch

	stats Stats
}

func New(cfg Config, send SendFunc) *Conduit {
	return &Conduit{cfg: cfg, send: send, state: Connected}
}

func (c *Conduit) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendBatch transmits a batch, assigning the next monotonic BatchSeq for
// this direction. It fails with a NetworkError if the conduit has been
// shut down.
func (c *Conduit) SendBatch(entries []JournalEntry, sourceSite ids.SiteId) error {
	c.mu.Lock()
	if c.state == Shutdown {
		c.mu.Unlock()
		return &cferr.NetworkError{Reason: "conduit is shut down"}
	}
	c.nextSeq++
	batch := EntryBatch{SourceSiteID: sourceSite, Entries: entries, BatchSeq: c.nextSeq}
	c.mu.Unlock()

	if err := c.send(batch); err != nil {
		c.stats.SendErrors.Add(1)
		c.beginReconnect()
		return &cferr.NetworkError{Reason: err.Error()}
	}
	c.stats.BatchesSent.Add(1)
	c.stats.EntriesSent.Add(uint64(len(entries)))
	metrics.ConduitBatchesSent.WithLabelValues(c.remoteLabel()).Inc()
	c.noteSuccess()
	return nil
}

func (c *Conduit) remoteLabel() string {
	return strconv.FormatUint(uint64(c.cfg.RemoteSiteID), 10)
}

// RecvBatch enqueues an inbound batch, for later draining by the
// replication pipeline.
func (c *Conduit) RecvBatch(batch EntryBatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Shutdown {
		return
	}
	c.inbound = append(c.inbound, batch)
	c.stats.BatchesReceived.Add(1)
	c.stats.EntriesReceived.Add(uint64(len(batch.Entries)))
}

// DrainInbound returns and clears everything RecvBatch has queued. Once
// shut down, the inbound queue is drained one final time and then always
// reports empty, per §4.6's "recv_batch returns none after shutdown and
// the inbound queue drains".
func (c *Conduit) DrainInbound() []EntryBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.inbound
	c.inbound = nil
	return out
}

func (c *Conduit) noteSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Reconnecting {
		c.state = Connected
		c.attempt = 0
	}
}

// beginReconnect moves the conduit into Reconnecting and bumps the
// reconnect attempt counter, from which NextBackoff derives the
// exponential delay capped at MaxBackoff.
func (c *Conduit) beginReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Shutdown {
		return
	}
	c.state = Reconnecting
	c.attempt++
	c.stats.Reconnects.Add(1)
	metrics.ConduitReconnects.WithLabelValues(c.remoteLabel()).Inc()
	log.Warnf("conduit to site %d entering reconnect, attempt %d", c.cfg.RemoteSiteID, c.attempt)
}

// NextBackoff returns the exponential delay for the current reconnect
// attempt, doubling per attempt and capped at MaxBackoff.
func (c *Conduit) NextBackoff() time.Duration {
	c.mu.Lock()
	attempt := c.attempt
	c.mu.Unlock()
	if attempt <= 0 {
		return 0
	}
	delay := c.cfg.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.MaxBackoff {
			return c.cfg.MaxBackoff
		}
	}
	if delay > c.cfg.MaxBackoff {
		return c.cfg.MaxBackoff
	}
	return delay
}

func (c *Conduit) ShutdownConduit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Shutdown
}

func (c *Conduit) StatsSnapshot() Stats {
	var s Stats
	s.BatchesSent.Store(c.stats.BatchesSent.Load())
	s.EntriesSent.Store(c.stats.EntriesSent.Load())
	s.BatchesReceived.Store(c.stats.BatchesReceived.Load())
	s.EntriesReceived.Store(c.stats.EntriesReceived.Load())
	s.SendErrors.Store(c.stats.SendErrors.Load())
	s.Reconnects.Store(c.stats.Reconnects.Load())
	return s
}
