// Package kv specifies the storage capability set consumed by the inode
// store, directory store, and quota manager (§9: "dynamic dispatch over
// storage backends is specified as a capability set"). Two backends are
// provided: an in-memory ordered map for tests and ephemeral shards, and
// a github.com/tidwall/buntdb-backed store (teacher dependency) for the
// persisted case, both exposing the same prefix-scannable interface.
package kv

// Store is the capability set every backend must implement: get, put,
// delete, and an ordered prefix scan.
type Store interface {
	Get(key string) (value []byte, found bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	// ScanPrefix calls fn for every key with the given prefix in ascending
	// key order, stopping early if fn returns false.
	ScanPrefix(prefix string, fn func(key string, value []byte) bool) error
}
