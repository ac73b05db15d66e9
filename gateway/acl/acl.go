// Package acl implements the gateway-visible POSIX ACL and NFSv4 ACE
// conversion of §6. There is no direct teacher analogue (aistore has no
// filesystem ACL layer); grounded on the teacher's general approach to
// small bitfield/permission types (cmn's typed access-control
// constants) and expressed idiomatically with explicit validation
// rather than a parser, per the spec's scope note that wire parsing is
// out of bounds here.
package acl

import "github.com/claudefs/core/cferr"

// Perm is a POSIX (r,w,x) permission triple, packed as a 3-bit mask.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExecute
)

// EntryKind identifies a POSIX ACL entry's subject.
type EntryKind int

const (
	UserObj EntryKind = iota
	User
	GroupObj
	Group
	Mask
	Other
)

// Entry is one POSIX ACL entry. ID is meaningful only for User/Group
// kinds (the named uid/gid).
type Entry struct {
	Kind EntryKind
	ID   uint32
	Perm Perm
}

// ACL is an ordered set of POSIX ACL entries for one inode.
type ACL struct {
	Entries []Entry
}

func (a ACL) find(kind EntryKind) (Entry, bool) {
	for _, e := range a.Entries {
		if e.Kind == kind {
			return e, true
		}
	}
	return Entry{}, false
}

func (a ACL) hasNamedEntry() bool {
	for _, e := range a.Entries {
		if e.Kind == User || e.Kind == Group {
			return true
		}
	}
	return false
}

// Validate enforces §6's presence rules: UserObj, GroupObj, and Other
// are mandatory; Mask is mandatory whenever any named User or Group
// entry exists.
func (a ACL) Validate() error {
	if _, ok := a.find(UserObj); !ok {
		return &cferr.InvalidTransition{From: "acl", To: "missing UserObj"}
	}
	if _, ok := a.find(GroupObj); !ok {
		return &cferr.InvalidTransition{From: "acl", To: "missing GroupObj"}
	}
	if _, ok := a.find(Other); !ok {
		return &cferr.InvalidTransition{From: "acl", To: "missing Other"}
	}
	if a.hasNamedEntry() {
		if _, ok := a.find(Mask); !ok {
			return &cferr.InvalidTransition{From: "acl", To: "missing Mask with named entries present"}
		}
	}
	return nil
}

// ModeBits is the classical (user, group, other) permission triple
// produced by ToMode.
type ModeBits struct {
	User, Group, Other Perm
}

// ToMode converts a validated ACL to classical mode bits per §6:
// user = UserObj; group = Mask if present else GroupObj; other = Other.
func (a ACL) ToMode() (ModeBits, error) {
	if err := a.Validate(); err != nil {
		return ModeBits{}, err
	}
	userObj, _ := a.find(UserObj)
	other, _ := a.find(Other)
	group := GroupObj
	if _, ok := a.find(Mask); ok {
		group = Mask
	}
	groupEntry, _ := a.find(group)
	return ModeBits{User: userObj.Perm, Group: groupEntry.Perm, Other: other.Perm}, nil
}

// Effective computes the POSIX permission a caller (callerUID,
// callerGID) has against an inode owned by (ownerUID, ownerGID),
// following the standard lookup order: owning user, named user, owning
// group, named group, other — with Mask intersected against any named
// or group-derived entry, per §6.
func (a ACL) Effective(callerUID, callerGID, ownerUID, ownerGID uint32) Perm {
	mask, hasMask := a.find(Mask)
	applyMask := func(p Perm) Perm {
		if hasMask {
			return p & mask.Perm
		}
		return p
	}
	if callerUID == ownerUID {
		userObj, _ := a.find(UserObj)
		return userObj.Perm
	}
	for _, e := range a.Entries {
		if e.Kind == User && e.ID == callerUID {
			return applyMask(e.Perm)
		}
	}
	if callerGID == ownerGID {
		groupObj, _ := a.find(GroupObj)
		return applyMask(groupObj.Perm)
	}
	for _, e := range a.Entries {
		if e.Kind == Group && e.ID == callerGID {
			return applyMask(e.Perm)
		}
	}
	other, _ := a.find(Other)
	return other.Perm
}

// AceType is an NFSv4 ACE's type field.
type AceType int

const (
	AceAllow AceType = iota
	AceDeny
	AceAudit
	AceAlarm
)

// AceFlag bits: the three inheritance flags. ToAce never sets them, and
// no code in this package acts on them.
type AceFlag uint32

const (
	FlagInheritFile AceFlag = 1 << iota
	FlagInheritDir
	FlagInheritOnly
)

// AccessMask mirrors NFSv4's bitfield access mask, reusing the POSIX
// triple for the subset this spec cares about plus an append bit.
type AccessMask uint32

const (
	MaskRead AccessMask = 1 << iota
	MaskWrite
	MaskExecute
	MaskAppend
)

// Ace is one NFSv4 access control entry.
type Ace struct {
	Type   AceType
	Flags  AceFlag
	Mask   AccessMask
	UserID uint32
}

// FromPosixPerm converts a POSIX permission triple to an NFSv4 allow
// Ace's access mask, a stable encoding: r->MaskRead, w->MaskWrite,
// x->MaskExecute.
func FromPosixPerm(p Perm) AccessMask {
	var m AccessMask
	if p&PermRead != 0 {
		m |= MaskRead
	}
	if p&PermWrite != 0 {
		m |= MaskWrite
	}
	if p&PermExecute != 0 {
		m |= MaskExecute
	}
	return m
}

// ToAce converts one POSIX ACL entry to an NFSv4 Allow Ace with the
// stable access-mask encoding above.
func ToAce(e Entry) Ace {
	return Ace{Type: AceAllow, Mask: FromPosixPerm(e.Perm), UserID: e.ID}
}
