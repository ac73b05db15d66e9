// Package quota implements the per-user/per-group storage quota manager
// of §4.9, grounded on original_source/crates/claudefs-meta/src/quota.rs.
// Persistence (when a kv.Store is configured) uses the same
// json-iterator encoding as metaentity, under the "quota:user:<uid>" /
// "quota:group:<gid>" key prefixes the spec names.
package quota

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/kv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type TargetKind int

const (
	TargetUser TargetKind = iota
	TargetGroup
)

type Target struct {
	Kind TargetKind
	ID   uint32
}

func UserTarget(uid uint32) Target  { return Target{Kind: TargetUser, ID: uid} }
func GroupTarget(gid uint32) Target { return Target{Kind: TargetGroup, ID: gid} }

func (t Target) key() string {
	if t.Kind == TargetGroup {
		return fmt.Sprintf("quota:group:%d", t.ID)
	}
	return fmt.Sprintf("quota:user:%d", t.ID)
}

const unlimited = ^uint64(0)

type Limit struct {
	MaxBytes  uint64
	MaxInodes uint64
}

func Unlimited() Limit { return Limit{MaxBytes: unlimited, MaxInodes: unlimited} }

func (l Limit) HasByteLimit() bool  { return l.MaxBytes != unlimited }
func (l Limit) HasInodeLimit() bool { return l.MaxInodes != unlimited }

type Usage struct {
	BytesUsed  uint64
	InodesUsed uint64
}

// Add applies signed deltas, saturating at zero on underflow rather than
// wrapping, matching the source's saturating_add/saturating_sub.
func (u *Usage) Add(deltaBytes, deltaInodes int64) {
	u.BytesUsed = saturatingApply(u.BytesUsed, deltaBytes)
	u.InodesUsed = saturatingApply(u.InodesUsed, deltaInodes)
}

func saturatingApply(cur uint64, delta int64) uint64 {
	if delta >= 0 {
		d := uint64(delta)
		if cur+d < cur { // overflow
			return unlimited
		}
		return cur + d
	}
	d := uint64(-delta)
	if d > cur {
		return 0
	}
	return cur - d
}

type Entry struct {
	Target Target
	Limit  Limit
	Usage  Usage
}

// IsOverQuota reports whether the current usage exceeds whichever limits
// are actually bounded.
func (e Entry) IsOverQuota() bool {
	if e.Limit.HasByteLimit() && e.Usage.BytesUsed > e.Limit.MaxBytes {
		return true
	}
	if e.Limit.HasInodeLimit() && e.Usage.InodesUsed > e.Limit.MaxInodes {
		return true
	}
	return false
}

// Manager tracks quota limits and live usage per target, with optional
// persistence to a kv.Store.
type Manager struct {
	mu      sync.RWMutex
	entries map[Target]*Entry
	store   kv.Store // nil if unconfigured
}

func New() *Manager { return &Manager{entries: make(map[Target]*Entry)} }

func NewWithStore(store kv.Store) *Manager {
	return &Manager{entries: make(map[Target]*Entry), store: store}
}

func (m *Manager) persist(target Target, e Entry) {
	if m.store == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	_ = m.store.Put(target.key(), b)
}

func (m *Manager) deletePersisted(target Target) {
	if m.store == nil {
		return
	}
	_ = m.store.Delete(target.key())
}

// LoadFromStore rebuilds in-memory quota state from the KV store,
// returning the number of entries loaded.
func (m *Manager) LoadFromStore() (int, error) {
	if m.store == nil {
		return 0, &cferr.KvError{Reason: "no kv store configured"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, prefix := range []string{"quota:user:", "quota:group:"} {
		err := m.store.ScanPrefix(prefix, func(key string, value []byte) bool {
			var e Entry
			if err := json.Unmarshal(value, &e); err == nil {
				cp := e
				m.entries[e.Target] = &cp
				count++
			}
			return true
		})
		if err != nil {
			return count, &cferr.KvError{Reason: err.Error()}
		}
	}
	return count, nil
}

func (m *Manager) SetQuota(target Target, limit Limit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[target]
	if !ok {
		e = &Entry{Target: target}
		m.entries[target] = e
	}
	e.Limit = limit
	m.persist(target, *e)
}

func (m *Manager) RemoveQuota(target Target) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[target]; !ok {
		return false
	}
	delete(m.entries, target)
	m.deletePersisted(target)
	return true
}

func (m *Manager) GetQuota(target Target) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[target]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// CheckQuota reports NoSpace if applying the given deltas would push
// either the user's or the group's usage over its configured limit.
// Targets with no configured quota are unconstrained.
func (m *Manager) CheckQuota(uid, gid uint32, deltaBytes, deltaInodes int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, target := range []Target{UserTarget(uid), GroupTarget(gid)} {
		e, ok := m.entries[target]
		if !ok {
			continue
		}
		wouldBeBytes := saturatingApply(e.Usage.BytesUsed, maxInt64(deltaBytes, 0))
		wouldBeInodes := saturatingApply(e.Usage.InodesUsed, maxInt64(deltaInodes, 0))
		if e.Limit.HasByteLimit() && wouldBeBytes > e.Limit.MaxBytes {
			return &cferr.NoSpace{Reason: fmt.Sprintf("quota exceeded for %+v: %d > %d bytes", target, wouldBeBytes, e.Limit.MaxBytes)}
		}
		if e.Limit.HasInodeLimit() && wouldBeInodes > e.Limit.MaxInodes {
			return &cferr.NoSpace{Reason: fmt.Sprintf("quota exceeded for %+v: %d > %d inodes", target, wouldBeInodes, e.Limit.MaxInodes)}
		}
	}
	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// UpdateUsage applies usage deltas for both the user and group targets
// that have a configured quota entry; targets with none configured are
// left untracked, matching the source's update-only-if-present behavior.
func (m *Manager) UpdateUsage(uid, gid uint32, deltaBytes, deltaInodes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, target := range []Target{UserTarget(uid), GroupTarget(gid)} {
		e, ok := m.entries[target]
		if !ok {
			continue
		}
		e.Usage.Add(deltaBytes, deltaInodes)
		m.persist(target, *e)
	}
}

func (m *Manager) GetUsage(target Target) (Usage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[target]
	if !ok {
		return Usage{}, false
	}
	return e.Usage, true
}

func (m *Manager) ListQuotas() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	return out
}

// OverQuotaTargets returns every target currently exceeding its limit,
// supplementing the spec's quota table with the source's operator-facing
// over_quota_targets query.
func (m *Manager) OverQuotaTargets() []Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Target
	for target, e := range m.entries {
		if e.IsOverQuota() {
			out = append(out, target)
		}
	}
	return out
}
