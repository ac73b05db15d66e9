// Package metasvc implements the per-shard metadata service of §4.2: the
// client-facing filesystem operation table (init_root, create_file,
// mkdir, lookup, getattr, setattr, readdir, unlink, rmdir, rename, link,
// symlink, readlink), composed from the inode store and directory store
// (metaentity), the per-shard consensus log (consensus), the metadata
// journal and replication tracker (metajournal), and a kv.Store.
//
// Every mutating operation is proposed to the shard's raft log before it
// is applied; the apply callback (Service.applyCommitted) is the only
// code path that touches the inode/directory stores, so the same
// deterministic sequence of mutations replays on every replica. Routing
// only accepts calls while the local node holds leadership of the shard,
// per §4.2's "routed via the leader of the inode's shard".
package metasvc

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/consensus"
	"github.com/claudefs/core/internal/clog"
	"github.com/claudefs/core/internal/ids"
	"github.com/claudefs/core/kv"
	"github.com/claudefs/core/metaentity"
	"github.com/claudefs/core/metajournal"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	modeDefaultDir = 0o755
	modeSymlink    = 0o777
)

// Service is one shard's live metadata state machine.
type Service struct {
	shardID ids.ShardId
	raft    *consensus.Shard
	propTO  time.Duration

	inodes *metaentity.InodeStore
	dirs   *metaentity.DirStore
	log    *metajournal.Journal
	repl   *metajournal.ReplicationTracker

	mu        sync.Mutex // guards nextInode; applyCommitted runs under raft's own serialization but nextInode may be read by callers too
	nextInode ids.InodeId

	clog clog.Logger
}

// New wires a Service for shardID. The caller supplies the raft config
// used to start this shard's consensus.Shard; the resulting Service's
// applyCommitted method is passed as the shard's ApplyFunc.
func New(shardID ids.ShardId, store kv.Store, raftCfg consensus.Config, proposeTimeout time.Duration) (*Service, error) {
	svc := &Service{
		shardID:   shardID,
		propTO:    proposeTimeout,
		inodes:    metaentity.NewInodeStore(store),
		dirs:      metaentity.NewDirStore(store),
		log:       metajournal.New(),
		repl:      metajournal.NewReplicationTracker(),
		nextInode: ids.RootInode,
		clog:      clog.New("metasvc").With("shard", shardID),
	}
	shard, err := consensus.NewShard(shardID, raftCfg, svc.applyCommitted)
	if err != nil {
		return nil, err
	}
	svc.raft = shard
	return svc, nil
}

func (s *Service) Shutdown() error { return s.raft.Shutdown() }

func (s *Service) requireLeader() error {
	if !s.raft.IsLeader() {
		return &cferr.NotLeader{}
	}
	return nil
}

// propose encodes op, replicates it via consensus, and replays the
// journal bookkeeping (append + own-site ack) once committed locally.
func (s *Service) propose(op metajournal.MetaOp) (any, error) {
	index, result, err := s.raft.Propose(op, s.propTO)
	if err != nil {
		s.clog.Warnf("propose op kind=%v failed: %v", op.Kind, err)
		return nil, err
	}
	seq := s.log.Append(op, index, s.raft.CurrentTerm(), time.Now().Unix())
	s.repl.Ack(s.shardID, 0, seq) // site 0 is always the local site
	return result, nil
}

// applyCommitted is the shard's consensus.ApplyFunc: it is invoked, in
// log order, on every node that has the entry committed, and is the only
// place inode/directory state actually changes.
func (s *Service) applyCommitted(op metajournal.MetaOp) (any, error) {
	switch op.Kind {
	case metajournal.OpCreateInode:
		return s.doCreateInode(op)
	case metajournal.OpSetAttr:
		return nil, s.doSetAttr(op)
	case metajournal.OpDeleteInode:
		return nil, s.doDeleteInode(op)
	case metajournal.OpCreateEntry:
		return s.doCreateEntry(op)
	case metajournal.OpDeleteEntry:
		return nil, s.doDeleteEntry(op)
	case metajournal.OpRename:
		return nil, s.doRename(op)
	case metajournal.OpLink:
		return nil, s.doLink(op)
	default:
		s.clog.Errorf("applyCommitted: unknown op kind %v", op.Kind)
		return nil, &cferr.InvalidTransition{From: "unknown-op", To: "applied"}
	}
}

func (s *Service) allocInode() ids.InodeId {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextInode++
	return s.nextInode
}

// ---- payload envelopes for each op kind ----

type createInodePayload struct {
	Parent        ids.InodeId
	Name          string
	Type          metaentity.InodeType
	Uid, Gid      uint32
	Mode          uint32
	SymlinkTarget string
}

type setAttrPayload struct {
	Mode         *uint32
	Size         *int64
	Uid, Gid     *uint32
	Atime, Mtime *int64
}

type createEntryPayload struct {
	Parent   ids.InodeId
	Name     string
	ChildIno ids.InodeId
	FileType metaentity.InodeType
}

type deleteEntryPayload struct {
	Parent ids.InodeId
	Name   string
}

type renamePayload struct {
	SrcParent ids.InodeId
	SrcName   string
	DstParent ids.InodeId
	DstName   string
}

type linkPayload struct {
	Parent ids.InodeId
	Name   string
	Ino    ids.InodeId
}

func encode(v any) []byte {
	b, _ := codec.Marshal(v)
	return b
}
