package filesys

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/dirent"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/inode"
	"github.com/mit-pdos/blockfs/twophase"
	"github.com/mit-pdos/blockfs/util"
	"github.com/mit-pdos/blockfs/walk"
)

func (s *Session) lookup(p string) (common.Inum, *inode.Inode, error) {
	loc, err := s.walk.Walk(p, walk.SelEntry)
	if err != nil {
		return 0, nil, err
	}
	ip, err := s.walk.ReadInode(loc.Ent.Inum)
	if err != nil {
		return 0, nil, fmt.Errorf("`%s`: %w", p, err)
	}
	return loc.Ent.Inum, ip, nil
}

func (s *Session) GetAttr(p string) (inode.Attr, error) {
	inum, ip, err := s.lookup(p)
	if err != nil {
		return inode.Attr{}, err
	}
	return ip.MkAttr(inum), nil
}

// ReadDir lists the valid entries of the directory at p.
func (s *Session) ReadDir(p string) ([]dirent.DirEnt, error) {
	_, ip, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	if !ip.IsDir() {
		return nil, fmt.Errorf("listing `%s`: %w", p, common.ErrNotDir)
	}
	ents, err := s.walk.ReadDir(ip)
	if err != nil {
		return nil, fmt.Errorf("listing `%s`: %w", p, err)
	}
	return ents, nil
}

// Read returns up to n bytes of the file at p starting at off.
func (s *Session) Read(p string, off uint64, n uint64) ([]byte, error) {
	_, ip, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	data, err := s.ReadRange(ip, off, n)
	if err != nil {
		return nil, fmt.Errorf("reading `%s`: %w", p, err)
	}
	return data, nil
}

// ReadRange copies min(n, size-off) bytes out of ip's data blocks. Reading
// at or past the end returns no bytes. The loop is bounded by the size, not
// by the pointer array: a zero pointer or a pointer index past the array
// before the size is reached means the inode is corrupt.
func (s *Session) ReadRange(ip *inode.Inode, off uint64, n uint64) ([]byte, error) {
	if ip.IsDir() {
		return nil, common.ErrIsDir
	}
	size := ip.Len()
	if off >= size {
		return []byte{}, nil
	}
	if util.SumOverflows(off, n) || off+n > size {
		n = size - off
	}

	data := make([]byte, 0, n)
	blk := make(disk.Block, disk.BlockSize)
	for uint64(len(data)) < n {
		pos := off + uint64(len(data))
		i := pos / disk.BlockSize
		if i >= common.NDIRECT {
			return nil, fmt.Errorf("size %d needs pointer %d: %w", size, i, common.ErrIO)
		}
		bn := common.Bnum(ip.Ptrs[i])
		if bn == common.NULLBNUM {
			return nil, fmt.Errorf("hole at pointer %d within size %d: %w",
				i, size, common.ErrIO)
		}
		if err := s.walk.ReadBlock(bn, blk); err != nil {
			return nil, err
		}
		boff := pos % disk.BlockSize
		m := util.Min(disk.BlockSize-boff, n-uint64(len(data)))
		data = append(data, blk[boff:boff+m]...)
	}
	util.DPrintf(3, "read [%d, %d) of %d\n", off, off+n, size)
	return data, nil
}

// updateInode runs f on the inode at p with the inode block locked, then
// writes it back.
func (s *Session) updateInode(op string, p string, f func(ip *inode.Inode)) error {
	loc, err := s.walk.Walk(p, walk.SelEntry)
	if err != nil {
		return err
	}
	bn := common.Bnum(loc.Ent.Inum)
	if !s.super.InBounds(bn) {
		return fmt.Errorf("%s `%s`: inode %d past end of disk: %w",
			op, p, bn, common.ErrIO)
	}

	tp := twophase.Begin(s.d, s.locks)
	defer tp.ReleaseAll()
	b, err := tp.ReadBuf(bn)
	if err != nil {
		return fmt.Errorf("%s `%s`: %w: %v", op, p, common.ErrIO, err)
	}
	ip := inode.Decode(b.Blk)
	f(ip)
	tp.OverWrite(bn, ip.Encode())
	if err := tp.Commit(); err != nil {
		return fmt.Errorf("%s `%s`: %w: %v", op, p, common.ErrIO, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "path": p, "inum": bn}).Debug("inode updated")
	return nil
}

// Chmod replaces the permission bits of p, keeping its type, and sets its
// modification time to now.
func (s *Session) Chmod(p string, mode uint32) error {
	now := uint32(s.now().Unix())
	return s.updateInode("chmod", p, func(ip *inode.Inode) {
		ip.SetPerm(mode)
		ip.Mtime = now
	})
}

// Utime sets the modification time of p.
func (s *Session) Utime(p string, mtime time.Time) error {
	ts := uint32(mtime.Unix())
	return s.updateInode("utime", p, func(ip *inode.Inode) {
		ip.Mtime = ts
	})
}

// sourceErr reports a failed walk of a rename source: anything but a
// device failure means the source does not exist.
func sourceErr(err error) error {
	if common.Kind(err) == common.ErrIO {
		return err
	}
	return fmt.Errorf("%v: %w", err, common.ErrNotFound)
}

// lockSource resolves names with the containing directory's inode block
// locked. If the entry moved to another directory between the unlocked walk
// and taking the lock, the lock is dropped and the walk retried.
func (s *Session) lockSource(tp *twophase.TwoPhase, names []dirent.Name) (*walk.Loc, error) {
	for {
		loc, err := s.walk.WalkNames(names, walk.SelParent)
		if err != nil {
			return nil, sourceErr(err)
		}
		if loc.IsRoot() {
			return loc, nil
		}
		parent := common.Bnum(loc.Parent)
		tp.Acquire(parent)
		loc, err = s.walk.WalkNames(names, walk.SelBlock)
		if err != nil {
			return nil, sourceErr(err)
		}
		if common.Bnum(loc.Parent) == parent {
			return loc, nil
		}
		util.DPrintf(1, "rename: entry moved from %d to %d, retrying\n", parent, loc.Parent)
		tp.Release()
	}
}

// Rename renames src to dst within one directory. A missing source fails
// with ErrNotFound and an existing dst with ErrExist; dst must differ from
// src only in its last component, and moving an entry to another directory
// (or renaming the root) fails with ErrInval.
//
// The parent directory's inode block stays locked from the walk that finds
// the entry to the write-back.
func (s *Session) Rename(src, dst string) error {
	sn, dn := walk.Split(src), walk.Split(dst)

	tp := twophase.Begin(s.d, s.locks)
	defer tp.ReleaseAll()
	loc, err := s.lockSource(tp, sn)
	if err != nil {
		return fmt.Errorf("rename `%s`: %w", src, err)
	}
	if _, err := s.walk.WalkNames(dn, walk.SelEntry); err == nil {
		return fmt.Errorf("rename to `%s`: %w", dst, common.ErrExist)
	} else if common.Kind(err) == common.ErrIO {
		return fmt.Errorf("rename to `%s`: %w", dst, err)
	}
	if loc.IsRoot() {
		return fmt.Errorf("rename `%s`: root: %w", src, common.ErrInval)
	}
	if !walk.SameParent(sn, dn) {
		return fmt.Errorf("rename `%s` to `%s`: different directories: %w",
			src, dst, common.ErrInval)
	}

	from, to := sn[len(sn)-1], dn[len(dn)-1]
	blk := loc.Block
	slot := loc.Addr.Slot()
	if !blk[slot].Valid || blk[slot].Name != from {
		var ok bool
		if slot, ok = blk.Find(from); !ok {
			return fmt.Errorf("rename `%s`: entry left block %d: %w",
				src, loc.Addr.Blkno, common.ErrNotFound)
		}
	}
	blk[slot].Name = to
	tp.OverWrite(loc.Addr.Blkno, blk.Encode())
	if err := tp.Commit(); err != nil {
		return fmt.Errorf("rename `%s`: %w: %v", src, common.ErrIO, err)
	}
	s.log.WithFields(logrus.Fields{
		"from":  src,
		"to":    dst,
		"block": loc.Addr.Blkno,
		"slot":  slot,
	}).Debug("renamed")
	return nil
}
