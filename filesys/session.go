// Package filesys is the mounted filesystem: a Session holds the state
// loaded at mount and serves the host-facing operations against it.
//
// Read-only operations walk without locks. Operations that rewrite a block
// (Chmod, Utime, Rename) run as one twophase sequence over the blocks they
// read and write.
package filesys

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/lockmap"
	"github.com/mit-pdos/blockfs/super"
	"github.com/mit-pdos/blockfs/util"
	"github.com/mit-pdos/blockfs/walk"
)

type Session struct {
	ID    uuid.UUID
	d     disk.Disk
	super *super.FsSuper
	walk  *walk.Walker
	locks *lockmap.LockMap
	now   func() time.Time
	log   *logrus.Entry
}

// Mount loads the superblock and bitmap from d. A bad superblock fails
// with super.ErrInvalidImage and nothing is mounted.
func Mount(d disk.Disk) (*Session, error) {
	fs, err := super.Load(d)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	s := &Session{
		ID:    id,
		d:     d,
		super: fs,
		walk:  walk.MkWalker(d, fs),
		locks: lockmap.MkLockMap(),
		now:   time.Now,
		log:   logrus.WithField("session", id.String()),
	}
	s.log.WithFields(logrus.Fields{
		"blocks": fs.Size,
		"free":   fs.NumFree(),
	}).Info("mounted")
	return s, nil
}

// SetClock replaces the clock used for modification times.
func (s *Session) SetClock(now func() time.Time) {
	s.now = now
}

// Unmount flushes and closes the device. The session must not be used
// afterwards.
func (s *Session) Unmount() error {
	util.DPrintf(1, "%s: unmount\n", s.ID)
	if err := s.d.Barrier(); err != nil {
		s.d.Close()
		return err
	}
	return s.d.Close()
}

// Statfs is the filesystem statistics record.
type Statfs struct {
	Bsize   uint64
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Namemax uint64
}

// Statfs reports the block size, the blocks past the superblock and
// bitmap, and how many of them are free. Free space is counted from the
// bitmap on every call.
func (s *Session) Statfs() Statfs {
	free := s.super.NumFree()
	return Statfs{
		Bsize:   disk.BlockSize,
		Blocks:  s.super.NumData(),
		Bfree:   free,
		Bavail:  free,
		Namemax: common.MAXNAMELEN,
	}
}
