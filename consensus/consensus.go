// Package consensus wraps github.com/hashicorp/raft (a real dependency
// pulled from the pack's other distributed-systems teacher,
// cuemby/warren, which uses it for exactly this purpose) as the per-shard
// log-replication engine of §4.3. Durable log/stable storage is backed by
// go.etcd.io/bbolt (the same pack's choice), mirroring warren's
// raft+raft-boltdb combination. Only committed entries are ever applied
// to the inode/directory store, via the FSM's Apply callback.
package consensus

import (
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/raft"
	boltdb "github.com/hashicorp/raft-boltdb"

	"github.com/claudefs/core/internal/ids"
	"github.com/claudefs/core/metajournal"
)

// ApplyFunc is invoked, in commit order, for every MetaOp that reaches a
// majority of replicas. It is the only path by which the inode/directory
// store is mutated. The returned value is threaded back to the proposer
// through raft's ApplyFuture.Response(), so an operation that allocates
// state deterministically during apply (e.g. a new inode id) can still
// report it to the caller that proposed it.
type ApplyFunc func(op metajournal.MetaOp) (any, error)

// ApplyResult is what FSM.Apply returns; raft hands it back verbatim via
// ApplyFuture.Response().
type ApplyResult struct {
	Value any
	Err   error
}

// FSM adapts a shard's ApplyFunc to raft.FSM.
type FSM struct {
	apply ApplyFunc
}

func NewFSM(apply ApplyFunc) *FSM { return &FSM{apply: apply} }

func (f *FSM) Apply(log *raft.Log) any {
	var op metajournal.MetaOp
	if err := decodeOp(log.Data, &op); err != nil {
		return ApplyResult{Err: err}
	}
	value, err := f.apply(op)
	return ApplyResult{Value: value, Err: err}
}

func (f *FSM) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }
func (f *FSM) Restore(rc io.ReadCloser) error      { return rc.Close() }

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (noopSnapshot) Release()                             {}

// Shard wraps one shard's *raft.Raft instance, exposing a narrow
// surface: propose, apply_committed (wired through the FSM's ApplyFunc at
// construction time), current_term, is_leader and commit_index. It has no
// snapshot-install method, and the FSM's snapshot and restore are no-ops.
type Shard struct {
	ShardID ids.ShardId
	raft    *raft.Raft
	fsm     *FSM
}

type Config struct {
	NodeID          string
	BindAddr        string
	DataDir         string // holds the bbolt log/stable store files
	Bootstrap       bool   // true to bootstrap a brand-new single/multi-node cluster
	ElectionTimeout time.Duration
}

// NewShard constructs and starts a shard's raft node, using bbolt-backed
// log and stable stores and raft's TCP transport.
func NewShard(shardID ids.ShardId, cfg Config, apply ApplyFunc) (*Shard, error) {
	fsm := NewFSM(apply)

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	if cfg.ElectionTimeout > 0 {
		raftCfg.ElectionTimeout = cfg.ElectionTimeout
		raftCfg.HeartbeatTimeout = cfg.ElectionTimeout
	}

	logStorePath := fmt.Sprintf("%s/shard-%d-log.bolt", cfg.DataDir, uint64(shardID))
	stableStorePath := fmt.Sprintf("%s/shard-%d-stable.bolt", cfg.DataDir, uint64(shardID))
	logStore, err := boltdb.NewBoltStore(logStorePath)
	if err != nil {
		return nil, err
	}
	stableStore, err := boltdb.NewBoltStore(stableStorePath)
	if err != nil {
		return nil, err
	}
	snapStore := raft.NewInmemSnapshotStore()

	addr, err := raft.NewTCPTransport(cfg.BindAddr, nil, 3, 10*time.Second, nil)
	if err != nil {
		return nil, err
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapStore, addr)
	if err != nil {
		return nil, err
	}

	if cfg.Bootstrap {
		cfgFuture := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: raftCfg.LocalID, Address: addr.LocalAddr()}},
		})
		if err := cfgFuture.Error(); err != nil {
			return nil, err
		}
	}

	return &Shard{ShardID: shardID, raft: r, fsm: fsm}, nil
}

// Propose submits op to the raft log and blocks until it is either
// applied (quorum reached) or the future errors out. The second return
// value is whatever the shard's ApplyFunc returned for this op.
func (s *Shard) Propose(op metajournal.MetaOp, timeout time.Duration) (ids.LogIndex, any, error) {
	data, err := encodeOp(op)
	if err != nil {
		return 0, nil, err
	}
	future := s.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return 0, nil, err
	}
	index := ids.LogIndex(future.Index())
	if ar, ok := future.Response().(ApplyResult); ok {
		return index, ar.Value, ar.Err
	}
	return index, future.Response(), nil
}

// CurrentTerm reports the node's current raft term, parsed from the
// stats snapshot raft exposes (there is no direct typed accessor).
func (s *Shard) CurrentTerm() ids.Term {
	stats := s.raft.Stats()
	termStr := stats["term"]
	var term uint64
	_, _ = fmt.Sscanf(termStr, "%d", &term)
	return ids.Term(term)
}

func (s *Shard) IsLeader() bool { return s.raft.State() == raft.Leader }

func (s *Shard) CommitIndex() ids.LogIndex { return ids.LogIndex(s.raft.AppliedIndex()) }

func (s *Shard) Shutdown() error { return s.raft.Shutdown().Error() }
