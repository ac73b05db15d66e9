package metaentity

import (
	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
	"github.com/claudefs/core/kv"
)

type DirEntry struct {
	ParentIno ids.InodeId
	Name      string
	ChildIno  ids.InodeId
	FileType  InodeType
}

func dirPrefix(parent ids.InodeId) string {
	return "dent:" + ids.InodeId(parent).String() + ":"
}

func dirKey(parent ids.InodeId, name string) string {
	return dirPrefix(parent) + name
}

// DirStore persists DirEntry records, ordered by name within a parent so
// readdir returns a stable, deterministic listing.
type DirStore struct {
	store kv.Store
}

func NewDirStore(store kv.Store) *DirStore { return &DirStore{store: store} }

func (d *DirStore) Put(e DirEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return &cferr.SerializationError{Reason: err.Error()}
	}
	if err := d.store.Put(dirKey(e.ParentIno, e.Name), b); err != nil {
		return &cferr.KvError{Reason: err.Error()}
	}
	return nil
}

func (d *DirStore) Get(parent ids.InodeId, name string) (DirEntry, error) {
	b, found, err := d.store.Get(dirKey(parent, name))
	if err != nil {
		return DirEntry{}, &cferr.KvError{Reason: err.Error()}
	}
	if !found {
		return DirEntry{}, &cferr.EntryNotFound{Parent: uint64(parent), Name: name}
	}
	var e DirEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return DirEntry{}, &cferr.SerializationError{Reason: err.Error()}
	}
	return e, nil
}

func (d *DirStore) Delete(parent ids.InodeId, name string) error {
	if err := d.store.Delete(dirKey(parent, name)); err != nil {
		return &cferr.KvError{Reason: err.Error()}
	}
	return nil
}

// List returns every entry under parent in ascending name order.
func (d *DirStore) List(parent ids.InodeId) ([]DirEntry, error) {
	prefix := dirPrefix(parent)
	var out []DirEntry
	err := d.store.ScanPrefix(prefix, func(key string, value []byte) bool {
		var e DirEntry
		if err := json.Unmarshal(value, &e); err == nil {
			out = append(out, e)
		}
		return true
	})
	if err != nil {
		return nil, &cferr.KvError{Reason: err.Error()}
	}
	return out, nil
}

// IsEmpty reports whether parent has any entries besides "." and "..".
func (d *DirStore) IsEmpty(parent ids.InodeId) (bool, error) {
	entries, err := d.List(parent)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		return false, nil
	}
	return true, nil
}
