// Package cferr defines the error categories of §7 of the specification
// as typed errors, grounded on the teacher's cmn/cos typed-error pattern
// (ErrNotFound et al.). Wrapping with call-site context uses
// github.com/pkg/errors, the teacher's wrapping library.
package cferr

import (
	"fmt"

	"github.com/pkg/errors"
)

// NotLeader is returned by any routing lookup performed against a node
// that does not currently hold leadership of the relevant shard.
type NotLeader struct {
	Hint string // address or node id of the believed leader, if known
}

func (e *NotLeader) Error() string {
	if e.Hint == "" {
		return "not leader"
	}
	return fmt.Sprintf("not leader (hint: %s)", e.Hint)
}

type InodeNotFound struct{ Ino uint64 }

func (e *InodeNotFound) Error() string { return fmt.Sprintf("inode %d not found", e.Ino) }

type EntryNotFound struct {
	Parent uint64
	Name   string
}

func (e *EntryNotFound) Error() string {
	return fmt.Sprintf("entry %q not found in parent %d", e.Name, e.Parent)
}

type EntryExists struct {
	Parent uint64
	Name   string
}

func (e *EntryExists) Error() string {
	return fmt.Sprintf("entry %q already exists in parent %d", e.Name, e.Parent)
}

type NotADirectory struct{ Ino uint64 }

func (e *NotADirectory) Error() string { return fmt.Sprintf("inode %d is not a directory", e.Ino) }

type DirectoryNotEmpty struct{ Ino uint64 }

func (e *DirectoryNotEmpty) Error() string {
	return fmt.Sprintf("directory %d is not empty", e.Ino)
}

type PermissionDenied struct{ Reason string }

func (e *PermissionDenied) Error() string { return "permission denied: " + e.Reason }

type NoSpace struct{ Reason string }

func (e *NoSpace) Error() string { return "no space: " + e.Reason }

type Timeout struct{ Op string }

func (e *Timeout) Error() string { return fmt.Sprintf("timeout: %s", e.Op) }

type CircuitOpen struct{ Endpoint string }

func (e *CircuitOpen) Error() string { return fmt.Sprintf("circuit open: %s", e.Endpoint) }

type NetworkError struct{ Reason string }

func (e *NetworkError) Error() string { return "network error: " + e.Reason }

type InvalidTransition struct {
	From, To string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

type KvError struct{ Reason string }

func (e *KvError) Error() string { return "kv error: " + e.Reason }

type SerializationError struct{ Reason string }

func (e *SerializationError) Error() string { return "serialization error: " + e.Reason }

// Wrap attaches call-site context using pkg/errors, preserving the stack.
func Wrap(err error, msg string) error { return errors.Wrap(err, msg) }
