// Package txn implements the cross-shard transaction coordinator of
// §4.4: two-phase commit over a set of participant shards. Grounded on
// original_source/crates/claudefs-meta/src/transaction.rs, expressed the
// teacher's way (mutex-guarded map of transactions, no global state).
package txn

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
	"github.com/claudefs/core/metajournal"
)

type State int

const (
	Preparing State = iota
	Prepared
	Committing
	Committed
	Aborting
	Aborted
)

func (s State) String() string {
	switch s {
	case Preparing:
		return "preparing"
	case Prepared:
		return "prepared"
	case Committing:
		return "committing"
	case Committed:
		return "committed"
	case Aborting:
		return "aborting"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type vote int

const (
	voteNone vote = iota
	voteCommit
	voteAbort
)

type Participant struct {
	Shard ids.ShardId
	vote  vote
}

type Transaction struct {
	ID               ids.TransactionId
	State            State
	CoordinatorShard ids.ShardId
	Participants     []*Participant
	Op               metajournal.MetaOp
	CreatedAt        time.Time
}

func (t *Transaction) allVotedCommit() bool {
	for _, p := range t.Participants {
		if p.vote != voteCommit {
			return false
		}
	}
	return true
}

func (t *Transaction) anyVotedAbort() bool {
	for _, p := range t.Participants {
		if p.vote == voteAbort {
			return true
		}
	}
	return false
}

// Manager is the coordinator's 2PC state machine. Its transaction records
// live only in an in-memory map: transitions are neither persisted nor
// replicated through a raft log, and are lost when the process exits.
type Manager struct {
	mu      sync.Mutex
	timeout time.Duration
	byID    map[ids.TransactionId]*Transaction
	nextSeq uint64
}

func NewManager(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout, byID: make(map[ids.TransactionId]*Transaction)}
}

// Begin starts a new transaction in Preparing, across the given
// participant shards, using a random (non-sequential) id per
// SPEC_FULL.md's choice of google/uuid for ids that need not be ordered.
func (m *Manager) Begin(coordinatorShard ids.ShardId, participants []ids.ShardId, op metajournal.MetaOp) ids.TransactionId {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ids.TransactionId(uuid.New().ID())
	ps := make([]*Participant, len(participants))
	for i, s := range participants {
		ps[i] = &Participant{Shard: s}
	}
	m.byID[id] = &Transaction{
		ID:               id,
		State:            Preparing,
		CoordinatorShard: coordinatorShard,
		Participants:     ps,
		Op:               op,
		CreatedAt:        time.Now(),
	}
	return id
}

func (m *Manager) find(id ids.TransactionId) (*Transaction, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, &cferr.InvalidTransition{From: "unknown", To: "vote"}
	}
	return t, nil
}

// recordVote records a shard's vote idempotently: a second vote from the same
// shard, whether matching or not, is a no-op against the first.
func (m *Manager) recordVote(id ids.TransactionId, shard ids.ShardId, v vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.find(id)
	if err != nil {
		return err
	}
	for _, p := range t.Participants {
		if p.Shard == shard {
			if p.vote == voteNone {
				p.vote = v
			}
			return nil
		}
	}
	return &cferr.InvalidTransition{From: "not-a-participant", To: "vote"}
}

func (m *Manager) VoteCommit(id ids.TransactionId, shard ids.ShardId) error {
	return m.recordVote(id, shard, voteCommit)
}

func (m *Manager) VoteAbort(id ids.TransactionId, shard ids.ShardId) error {
	return m.recordVote(id, shard, voteAbort)
}

// CheckVotes evaluates the current vote tally: any abort moves the
// transaction to Aborting; all-commit moves Preparing -> Prepared ->
// Committing; otherwise state is unchanged.
func (m *Manager) CheckVotes(id ids.TransactionId) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.find(id)
	if err != nil {
		return 0, err
	}
	if t.anyVotedAbort() {
		t.State = Aborting
		return t.State, nil
	}
	if t.allVotedCommit() && t.State == Preparing {
		t.State = Committing
	}
	return t.State, nil
}

func (m *Manager) Commit(id ids.TransactionId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.find(id)
	if err != nil {
		return err
	}
	if t.State != Committing {
		return &cferr.InvalidTransition{From: t.State.String(), To: Committed.String()}
	}
	t.State = Committed
	return nil
}

func (m *Manager) Abort(id ids.TransactionId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.find(id)
	if err != nil {
		return err
	}
	if t.State != Preparing && t.State != Aborting {
		return &cferr.InvalidTransition{From: t.State.String(), To: Aborted.String()}
	}
	t.State = Aborted
	return nil
}

func (m *Manager) Get(id ids.TransactionId) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.find(id)
	if err != nil {
		return Transaction{}, err
	}
	return *t, nil
}

// CleanupCompleted removes every Committed or Aborted record.
func (m *Manager) CleanupCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.byID {
		if t.State == Committed || t.State == Aborted {
			delete(m.byID, id)
			n++
		}
	}
	return n
}

// CleanupTimedOut aborts every record in Preparing/Committing/Aborting
// whose CreatedAt+timeout has elapsed, returning the ids it aborted.
func (m *Manager) CleanupTimedOut(now time.Time) []ids.TransactionId {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ids.TransactionId
	for id, t := range m.byID {
		if t.State != Preparing && t.State != Committing && t.State != Aborting {
			continue
		}
		if !t.CreatedAt.Add(m.timeout).After(now) {
			t.State = Aborted
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
