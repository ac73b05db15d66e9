// Package ids defines the fixed-width identifier types shared across the
// cluster. They are identically represented (uint64) but semantically
// distinct, so the compiler catches cross-kind mixups that string or bare
// uint64 parameters would not.
package ids

import "fmt"

type (
	NodeId        uint64
	SiteId        uint64
	ShardId       uint64
	InodeId       uint64
	LogIndex      uint64
	Term          uint64
	Sequence      uint64
	TransactionId uint64
	RequestId     uint64
)

func (n NodeId) String() string        { return fmt.Sprintf("node[%d]", uint64(n)) }
func (s SiteId) String() string        { return fmt.Sprintf("site[%d]", uint64(s)) }
func (s ShardId) String() string       { return fmt.Sprintf("shard[%d]", uint64(s)) }
func (i InodeId) String() string       { return fmt.Sprintf("ino[%d]", uint64(i)) }
func (t TransactionId) String() string { return fmt.Sprintf("txn[%d]", uint64(t)) }

// RootInode is the well-known inode id of the filesystem root directory.
const RootInode InodeId = 1
