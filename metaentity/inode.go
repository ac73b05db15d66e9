// Package metaentity implements the inode store and directory store of
// §4.2/§3 on top of the kv.Store capability set, per §9's note that
// storage-backend dispatch is a capability set the store is polymorphic
// over. Serialization uses github.com/json-iterator/go, the teacher's
// drop-in encoding/json replacement, per SPEC_FULL.md's ambient stack.
package metaentity

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
	"github.com/claudefs/core/kv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type InodeType int

const (
	TypeFile InodeType = iota
	TypeDir
	TypeSymlink
)

type InodeAttr struct {
	Ino           ids.InodeId
	Type          InodeType
	Uid, Gid      uint32
	Mode          uint32
	Size          int64
	Nlink         uint32
	Atime         int64 // wall-clock seconds since epoch
	Mtime         int64
	Ctime         int64
	SiteID        ids.SiteId
	SymlinkTarget string
}

func inodeKey(ino ids.InodeId) string {
	return "ino:" + ids.InodeId(ino).String()
}

// InodeStore persists InodeAttr records keyed by inode id.
type InodeStore struct {
	store kv.Store
}

func NewInodeStore(store kv.Store) *InodeStore { return &InodeStore{store: store} }

func (s *InodeStore) Put(attr InodeAttr) error {
	b, err := json.Marshal(attr)
	if err != nil {
		return &cferr.SerializationError{Reason: err.Error()}
	}
	if err := s.store.Put(inodeKey(attr.Ino), b); err != nil {
		return &cferr.KvError{Reason: err.Error()}
	}
	return nil
}

func (s *InodeStore) Get(ino ids.InodeId) (InodeAttr, error) {
	b, found, err := s.store.Get(inodeKey(ino))
	if err != nil {
		return InodeAttr{}, &cferr.KvError{Reason: err.Error()}
	}
	if !found {
		return InodeAttr{}, &cferr.InodeNotFound{Ino: uint64(ino)}
	}
	var attr InodeAttr
	if err := json.Unmarshal(b, &attr); err != nil {
		return InodeAttr{}, &cferr.SerializationError{Reason: err.Error()}
	}
	return attr, nil
}

func (s *InodeStore) Delete(ino ids.InodeId) error {
	if err := s.store.Delete(inodeKey(ino)); err != nil {
		return &cferr.KvError{Reason: err.Error()}
	}
	return nil
}

func now() int64 { return time.Now().Unix() }
