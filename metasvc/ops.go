package metasvc

import (
	"time"

	"github.com/claudefs/core/cferr"
	"github.com/claudefs/core/internal/ids"
	"github.com/claudefs/core/metaentity"
	"github.com/claudefs/core/metajournal"
)

func now() int64 { return time.Now().Unix() }

// ---- init_root ----

// InitRoot creates inode 1 as a directory, mode 0o755, if it does not
// already exist. It is idempotent: calling it again is a no-op.
func (s *Service) InitRoot() error {
	if err := s.requireLeader(); err != nil {
		return err
	}
	if _, err := s.inodes.Get(ids.RootInode); err == nil {
		return nil
	}
	op := metajournal.MetaOp{
		Kind:    metajournal.OpCreateInode,
		Inode:   ids.RootInode,
		Payload: encode(createInodePayload{Type: metaentity.TypeDir, Mode: modeDefaultDir}),
	}
	_, err := s.propose(op)
	return err
}

func (s *Service) doCreateInode(op metajournal.MetaOp) (any, error) {
	var p createInodePayload
	if err := codec.Unmarshal(op.Payload, &p); err != nil {
		return nil, &cferr.SerializationError{Reason: err.Error()}
	}
	ino := op.Inode
	if ino == 0 {
		ino = s.allocInode()
	}
	nlink := uint32(1)
	if p.Type == metaentity.TypeDir {
		nlink = 2
	}
	ts := now()
	attr := metaentity.InodeAttr{
		Ino: ino, Type: p.Type, Uid: p.Uid, Gid: p.Gid, Mode: p.Mode,
		Nlink: nlink, Atime: ts, Mtime: ts, Ctime: ts,
		SymlinkTarget: p.SymlinkTarget,
	}
	if p.Type == metaentity.TypeSymlink {
		attr.Size = int64(len(p.SymlinkTarget))
	}
	if err := s.inodes.Put(attr); err != nil {
		return nil, err
	}
	return attr, nil
}

// ---- create_file / mkdir / symlink share the create-entry-under-parent shape ----

func (s *Service) createUnderParent(parent ids.InodeId, name string, typ metaentity.InodeType, uid, gid, mode uint32, symlinkTarget string) (metaentity.InodeAttr, error) {
	if err := s.requireLeader(); err != nil {
		return metaentity.InodeAttr{}, err
	}
	parentAttr, err := s.inodes.Get(parent)
	if err != nil {
		return metaentity.InodeAttr{}, err
	}
	if parentAttr.Type != metaentity.TypeDir {
		return metaentity.InodeAttr{}, &cferr.NotADirectory{Ino: uint64(parent)}
	}
	if _, err := s.dirs.Get(parent, name); err == nil {
		return metaentity.InodeAttr{}, &cferr.EntryExists{Parent: uint64(parent), Name: name}
	}

	createOp := metajournal.MetaOp{
		Kind: metajournal.OpCreateInode,
		Payload: encode(createInodePayload{
			Parent: parent, Name: name, Type: typ, Uid: uid, Gid: gid, Mode: mode, SymlinkTarget: symlinkTarget,
		}),
	}
	result, err := s.propose(createOp)
	if err != nil {
		return metaentity.InodeAttr{}, err
	}
	attr, ok := result.(metaentity.InodeAttr)
	if !ok {
		return metaentity.InodeAttr{}, &cferr.SerializationError{Reason: "create_inode did not return an InodeAttr"}
	}

	entryOp := metajournal.MetaOp{
		Kind:  metajournal.OpCreateEntry,
		Inode: attr.Ino,
		Payload: encode(createEntryPayload{
			Parent: parent, Name: name, ChildIno: attr.Ino, FileType: typ,
		}),
	}
	if _, err := s.propose(entryOp); err != nil {
		return metaentity.InodeAttr{}, err
	}

	bumpOp := metajournal.MetaOp{
		Kind:    metajournal.OpSetAttr,
		Inode:   parent,
		Payload: encode(setAttrEnvelope{IsBump: true, Bump: parentBumpPayload{Inode: parent, NlinkDelta: dirNlinkDelta(typ), Ctime: now()}}),
	}
	if _, err := s.propose(bumpOp); err != nil {
		return metaentity.InodeAttr{}, err
	}
	return attr, nil
}

func dirNlinkDelta(typ metaentity.InodeType) int32 {
	if typ == metaentity.TypeDir {
		return 1 // mkdir bumps the parent's nlink for the new ".." entry
	}
	return 0
}

// parentBumpPayload is a narrow SetAttr variant used internally to bump a
// parent directory's nlink/ctime as a side effect of create_file/mkdir/
// symlink and rmdir (unlink, link and rename do not bump the parent),
// distinct from the client-facing SetAttr op's full attribute payload.
// Both variants travel inside a setAttrEnvelope so applyCommitted can
// tell them apart without guessing from field shape.
type parentBumpPayload struct {
	Inode      ids.InodeId
	NlinkDelta int32
	Ctime      int64
}

type setAttrEnvelope struct {
	IsBump bool
	Attrs  setAttrPayload
	Bump   parentBumpPayload
}

func (s *Service) CreateFile(parent ids.InodeId, name string, uid, gid, mode uint32) (metaentity.InodeAttr, error) {
	return s.createUnderParent(parent, name, metaentity.TypeFile, uid, gid, mode, "")
}

func (s *Service) Mkdir(parent ids.InodeId, name string, uid, gid, mode uint32) (metaentity.InodeAttr, error) {
	return s.createUnderParent(parent, name, metaentity.TypeDir, uid, gid, mode, "")
}

func (s *Service) Symlink(parent ids.InodeId, name, target string, uid, gid uint32) (metaentity.InodeAttr, error) {
	return s.createUnderParent(parent, name, metaentity.TypeSymlink, uid, gid, modeSymlink, target)
}

// ---- lookup / getattr / readdir / readlink (read-only, no consensus needed) ----

func (s *Service) Lookup(parent ids.InodeId, name string) (metaentity.InodeAttr, error) {
	entry, err := s.dirs.Get(parent, name)
	if err != nil {
		return metaentity.InodeAttr{}, err
	}
	return s.inodes.Get(entry.ChildIno)
}

func (s *Service) GetAttr(ino ids.InodeId) (metaentity.InodeAttr, error) {
	return s.inodes.Get(ino)
}

func (s *Service) ReadDir(parent ids.InodeId) ([]metaentity.DirEntry, error) {
	attr, err := s.inodes.Get(parent)
	if err != nil {
		return nil, err
	}
	if attr.Type != metaentity.TypeDir {
		return nil, &cferr.NotADirectory{Ino: uint64(parent)}
	}
	return s.dirs.List(parent)
}

func (s *Service) ReadLink(ino ids.InodeId) (string, error) {
	attr, err := s.inodes.Get(ino)
	if err != nil {
		return "", err
	}
	if attr.Type != metaentity.TypeSymlink {
		return "", &cferr.NotADirectory{Ino: uint64(ino)}
	}
	return attr.SymlinkTarget, nil
}

// ---- setattr ----

func (s *Service) SetAttr(ino ids.InodeId, mode, uid, gid *uint32, size *int64) (metaentity.InodeAttr, error) {
	if err := s.requireLeader(); err != nil {
		return metaentity.InodeAttr{}, err
	}
	if _, err := s.inodes.Get(ino); err != nil {
		return metaentity.InodeAttr{}, err
	}
	op := metajournal.MetaOp{
		Kind:    metajournal.OpSetAttr,
		Inode:   ino,
		Payload: encode(setAttrEnvelope{Attrs: setAttrPayload{Mode: mode, Uid: uid, Gid: gid, Size: size, Mtime: ptrInt64(now())}}),
	}
	result, err := s.propose(op)
	if err != nil {
		return metaentity.InodeAttr{}, err
	}
	if attr, ok := result.(metaentity.InodeAttr); ok {
		return attr, nil
	}
	return s.inodes.Get(ino)
}

func ptrInt64(v int64) *int64 { return &v }

func (s *Service) doSetAttr(op metajournal.MetaOp) error {
	var env setAttrEnvelope
	if err := codec.Unmarshal(op.Payload, &env); err != nil {
		return &cferr.SerializationError{Reason: err.Error()}
	}
	if env.IsBump {
		return s.applyParentBump(env.Bump)
	}
	p := env.Attrs
	attr, err := s.inodes.Get(op.Inode)
	if err != nil {
		return err
	}
	if p.Mode != nil {
		attr.Mode = *p.Mode
	}
	if p.Uid != nil {
		attr.Uid = *p.Uid
	}
	if p.Gid != nil {
		attr.Gid = *p.Gid
	}
	if p.Size != nil {
		attr.Size = *p.Size
	}
	if p.Atime != nil {
		attr.Atime = *p.Atime
	}
	if p.Mtime != nil {
		attr.Mtime = *p.Mtime
	}
	attr.Ctime = now()
	return s.inodes.Put(attr)
}

func (s *Service) applyParentBump(p parentBumpPayload) error {
	attr, err := s.inodes.Get(p.Inode)
	if err != nil {
		return err
	}
	if p.NlinkDelta > 0 {
		attr.Nlink += uint32(p.NlinkDelta)
	} else if p.NlinkDelta < 0 {
		if attr.Nlink > 0 {
			attr.Nlink--
		}
	}
	attr.Mtime = p.Ctime
	attr.Ctime = p.Ctime
	return s.inodes.Put(attr)
}

// ---- unlink / rmdir ----

func (s *Service) Unlink(parent ids.InodeId, name string) error {
	if err := s.requireLeader(); err != nil {
		return err
	}
	entry, err := s.dirs.Get(parent, name)
	if err != nil {
		return err
	}
	target, err := s.inodes.Get(entry.ChildIno)
	if err != nil {
		return err
	}
	if target.Type == metaentity.TypeDir {
		return &cferr.PermissionDenied{Reason: "unlink: target is a directory, use rmdir"}
	}
	return s.removeEntry(parent, name, entry.ChildIno, 0)
}

func (s *Service) Rmdir(parent ids.InodeId, name string) error {
	if err := s.requireLeader(); err != nil {
		return err
	}
	entry, err := s.dirs.Get(parent, name)
	if err != nil {
		return err
	}
	target, err := s.inodes.Get(entry.ChildIno)
	if err != nil {
		return err
	}
	if target.Type != metaentity.TypeDir {
		return &cferr.NotADirectory{Ino: uint64(entry.ChildIno)}
	}
	empty, err := s.dirs.IsEmpty(entry.ChildIno)
	if err != nil {
		return err
	}
	if !empty {
		return &cferr.DirectoryNotEmpty{Ino: uint64(entry.ChildIno)}
	}
	return s.removeEntry(parent, name, entry.ChildIno, -1)
}

// removeEntry drops the directory entry, decrements the child's nlink
// (deleting the inode once it reaches zero), and bumps the parent's
// nlink by parentNlinkDelta (rmdir removes a ".." reference; unlink
// leaves the parent's link count untouched).
func (s *Service) removeEntry(parent ids.InodeId, name string, child ids.InodeId, parentNlinkDelta int32) error {
	delOp := metajournal.MetaOp{
		Kind:    metajournal.OpDeleteEntry,
		Inode:   child,
		Payload: encode(deleteEntryPayload{Parent: parent, Name: name}),
	}
	if _, err := s.propose(delOp); err != nil {
		return err
	}
	if parentNlinkDelta != 0 {
		bumpOp := metajournal.MetaOp{
			Kind:    metajournal.OpSetAttr,
			Inode:   parent,
			Payload: encode(setAttrEnvelope{IsBump: true, Bump: parentBumpPayload{Inode: parent, NlinkDelta: parentNlinkDelta, Ctime: now()}}),
		}
		if _, err := s.propose(bumpOp); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) doDeleteEntry(op metajournal.MetaOp) error {
	var p deleteEntryPayload
	if err := codec.Unmarshal(op.Payload, &p); err != nil {
		return &cferr.SerializationError{Reason: err.Error()}
	}
	if err := s.dirs.Delete(p.Parent, p.Name); err != nil {
		return err
	}
	attr, err := s.inodes.Get(op.Inode)
	if err != nil {
		return err
	}
	if attr.Nlink > 0 {
		attr.Nlink--
	}
	if attr.Nlink == 0 {
		return s.inodes.Delete(op.Inode)
	}
	attr.Ctime = now()
	return s.inodes.Put(attr)
}

func (s *Service) doDeleteInode(op metajournal.MetaOp) error {
	return s.inodes.Delete(op.Inode)
}

func (s *Service) doCreateEntry(op metajournal.MetaOp) (any, error) {
	var p createEntryPayload
	if err := codec.Unmarshal(op.Payload, &p); err != nil {
		return nil, &cferr.SerializationError{Reason: err.Error()}
	}
	err := s.dirs.Put(metaentity.DirEntry{ParentIno: p.Parent, Name: p.Name, ChildIno: p.ChildIno, FileType: p.FileType})
	return nil, err
}

// ---- link ----

func (s *Service) Link(parent ids.InodeId, name string, ino ids.InodeId) error {
	if err := s.requireLeader(); err != nil {
		return err
	}
	target, err := s.inodes.Get(ino)
	if err != nil {
		return err
	}
	if target.Type == metaentity.TypeDir {
		return &cferr.PermissionDenied{Reason: "cannot hard-link a directory"}
	}
	if _, err := s.dirs.Get(parent, name); err == nil {
		return &cferr.EntryExists{Parent: uint64(parent), Name: name}
	}
	op := metajournal.MetaOp{
		Kind:    metajournal.OpLink,
		Inode:   ino,
		Payload: encode(linkPayload{Parent: parent, Name: name, Ino: ino}),
	}
	_, err = s.propose(op)
	return err
}

func (s *Service) doLink(op metajournal.MetaOp) error {
	var p linkPayload
	if err := codec.Unmarshal(op.Payload, &p); err != nil {
		return &cferr.SerializationError{Reason: err.Error()}
	}
	attr, err := s.inodes.Get(p.Ino)
	if err != nil {
		return err
	}
	if err := s.dirs.Put(metaentity.DirEntry{ParentIno: p.Parent, Name: p.Name, ChildIno: p.Ino, FileType: attr.Type}); err != nil {
		return err
	}
	attr.Nlink++
	attr.Ctime = now()
	return s.inodes.Put(attr)
}

// ---- rename (single-shard path only; txn.Manager tracks 2PC votes and
// states for a cross-shard rename but proposes nothing to any shard, so
// no code here applies a rename across shards) ----

func (s *Service) Rename(srcParent ids.InodeId, srcName string, dstParent ids.InodeId, dstName string) error {
	if err := s.requireLeader(); err != nil {
		return err
	}
	srcEntry, err := s.dirs.Get(srcParent, srcName)
	if err != nil {
		return err
	}
	if dstEntry, err := s.dirs.Get(dstParent, dstName); err == nil {
		dstAttr, err := s.inodes.Get(dstEntry.ChildIno)
		if err != nil {
			return err
		}
		if dstAttr.Type == metaentity.TypeDir {
			empty, err := s.dirs.IsEmpty(dstEntry.ChildIno)
			if err != nil {
				return err
			}
			if !empty {
				return &cferr.EntryExists{Parent: uint64(dstParent), Name: dstName}
			}
		}
		// policy: replace regular file / empty directory target silently.
	}
	op := metajournal.MetaOp{
		Kind:    metajournal.OpRename,
		Inode:   srcEntry.ChildIno,
		Payload: encode(renamePayload{SrcParent: srcParent, SrcName: srcName, DstParent: dstParent, DstName: dstName}),
	}
	_, err = s.propose(op)
	return err
}

func (s *Service) doRename(op metajournal.MetaOp) error {
	var p renamePayload
	if err := codec.Unmarshal(op.Payload, &p); err != nil {
		return &cferr.SerializationError{Reason: err.Error()}
	}
	src, err := s.dirs.Get(p.SrcParent, p.SrcName)
	if err != nil {
		return err
	}
	// Replacing an existing regular-file target: drop its link like
	// unlink would, per the rename op's replace policy (§4.2's table).
	if existing, err := s.dirs.Get(p.DstParent, p.DstName); err == nil && existing.ChildIno != src.ChildIno {
		if existingAttr, err := s.inodes.Get(existing.ChildIno); err == nil {
			if existingAttr.Nlink > 0 {
				existingAttr.Nlink--
			}
			if existingAttr.Nlink == 0 {
				_ = s.inodes.Delete(existing.ChildIno)
			} else {
				_ = s.inodes.Put(existingAttr)
			}
		}
	}
	if err := s.dirs.Delete(p.SrcParent, p.SrcName); err != nil {
		return err
	}
	if err := s.dirs.Put(metaentity.DirEntry{ParentIno: p.DstParent, Name: p.DstName, ChildIno: src.ChildIno, FileType: src.FileType}); err != nil {
		return err
	}
	attr, err := s.inodes.Get(src.ChildIno)
	if err != nil {
		return err
	}
	attr.Ctime = now()
	return s.inodes.Put(attr)
}
