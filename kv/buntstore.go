package kv

import (
	"errors"

	"github.com/tidwall/buntdb"
)

// BuntStore implements Store on top of github.com/tidwall/buntdb, whose
// ordered B-tree and AscendGreaterOrEqual iteration give us prefix scans
// without hand-rolling a sorted index.
type BuntStore struct {
	db *buntdb.DB
}

// OpenBunt opens (or creates) a buntdb database file. Pass ":memory:" for
// a non-persistent instance.
func OpenBunt(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &BuntStore{db: db}, nil
}

func (b *BuntStore) Close() error { return b.db.Close() }

func (b *BuntStore) Get(key string) ([]byte, bool, error) {
	var val string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (b *BuntStore) Put(key string, value []byte) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(value), nil)
		return err
	})
}

func (b *BuntStore) Delete(key string) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		return err
	})
}

func (b *BuntStore) ScanPrefix(prefix string, fn func(key string, value []byte) bool) error {
	return b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendGreaterOrEqual("", prefix, func(key, value string) bool {
			if len(key) < len(prefix) || key[:len(prefix)] != prefix {
				return false
			}
			return fn(key, []byte(value))
		})
	})
}
