// Package s3 implements the gateway-visible multipart upload state
// machine of §6: Active -> Completing -> Completed, with Aborted
// reachable from Active or Completing but never from Completed.
// Grounded on the teacher's ais/s3/mpt.go (the in-memory uploads map
// keyed by upload id, guarded by a single mutex), generalized from
// aistore's xattr-backed part bookkeeping to an explicit state machine
// with part contiguity validation on completion.
package s3

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/claudefs/core/cferr"
)

const MaxPartsPerUpload = 10000

// UploadState is the multipart upload's lifecycle state.
type UploadState int

const (
	Active UploadState = iota
	Completing
	Completed
	Aborted
)

func (s UploadState) String() string {
	switch s {
	case Completing:
		return "completing"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "active"
	}
}

// Part is one uploaded part, by part number.
type Part struct {
	Num  int64
	ETag string
	Size int64
}

type upload struct {
	id       string
	bucket   string
	key      string
	state    UploadState
	parts    map[int64]*Part
	ctime    time.Time
	finalTag string
}

// Manager tracks every in-flight multipart upload, mirroring the
// teacher's package-level uploads map but scoped to an instance and
// guarded by its own lock rather than package globals, per §9's
// no-process-global-state rule.
type Manager struct {
	mu      sync.RWMutex
	uploads map[string]*upload
}

func NewManager() *Manager {
	return &Manager{uploads: make(map[string]*upload)}
}

func (m *Manager) InitUpload(id, bucket, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[id] = &upload{
		id:     id,
		bucket: bucket,
		key:    key,
		state:  Active,
		parts:  make(map[int64]*Part),
		ctime:  time.Now(),
	}
}

func (m *Manager) get(id string) (*upload, error) {
	u, ok := m.uploads[id]
	if !ok {
		return nil, &cferr.EntryNotFound{Name: id}
	}
	return u, nil
}

// AddPart records one uploaded part. Only legal while Active.
func (m *Manager) AddPart(id string, part Part) error {
	if part.Num < 1 || part.Num > MaxPartsPerUpload {
		return &cferr.InvalidTransition{From: "part_number", To: "out_of_range"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return err
	}
	if u.state != Active {
		return &cferr.InvalidTransition{From: u.state.String(), To: "add_part"}
	}
	u.parts[part.Num] = &part
	return nil
}

// BeginComplete transitions Active -> Completing, validating that parts
// are contiguous 1..n with no gaps and no duplicates (duplicates cannot
// occur given AddPart's map-by-number overwrite semantics, but gaps
// can).
func (m *Manager) BeginComplete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return err
	}
	if u.state != Active {
		return &cferr.InvalidTransition{From: u.state.String(), To: Completing.String()}
	}
	if err := validateContiguous(u.parts); err != nil {
		return err
	}
	u.state = Completing
	return nil
}

func validateContiguous(parts map[int64]*Part) error {
	if len(parts) == 0 {
		return &cferr.InvalidTransition{From: "active", To: "completing: no parts"}
	}
	nums := make([]int64, 0, len(parts))
	for n := range parts {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for i, n := range nums {
		if n != int64(i+1) {
			return &cferr.InvalidTransition{From: "active", To: "completing: part numbering has a gap"}
		}
	}
	return nil
}

// Complete finishes a Completing upload, computing the final ETag as
// the ordered join of per-part ETags, per §6.
func (m *Manager) Complete(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return "", err
	}
	if u.state != Completing {
		return "", &cferr.InvalidTransition{From: u.state.String(), To: Completed.String()}
	}
	nums := make([]int64, 0, len(u.parts))
	for n := range u.parts {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	tags := make([]string, len(nums))
	for i, n := range nums {
		tags[i] = u.parts[n].ETag
	}
	u.finalTag = strings.Join(tags, "-")
	u.state = Completed
	return u.finalTag, nil
}

// Abort moves an upload to the Aborted absorbing state. Legal from
// Active or Completing; never from Completed.
func (m *Manager) Abort(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return err
	}
	if u.state == Completed {
		return &cferr.InvalidTransition{From: u.state.String(), To: Aborted.String()}
	}
	u.state = Aborted
	return nil
}

func (m *Manager) State(id string) (UploadState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return u.state, nil
}

// ObjSize sums part sizes, for the final object size on completion.
func (m *Manager) ObjSize(id string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, err := m.get(id)
	if err != nil {
		return 0, err
	}
	var size int64
	for _, p := range u.parts {
		size += p.Size
	}
	return size, nil
}

// Forget removes the upload record entirely, regardless of state; the
// caller is responsible for any backing-store cleanup.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, id)
}
