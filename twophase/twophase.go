// Package twophase is the read-modify-write discipline shared by every
// mutating operation: lock the scope, read the blocks to change, mutate them
// in memory, write them back, release.
//
// Locks are taken on first use and only released at Commit or ReleaseAll.
// There is no journal: write-back of several blocks is not atomic, but no
// other TwoPhase can observe or interleave with blocks this one holds.
package twophase

import (
	"github.com/mit-pdos/blockfs/buf"
	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/lockmap"
	"github.com/mit-pdos/blockfs/util"
)

type TwoPhase struct {
	d        disk.Disk
	bufs     *buf.BufMap
	locks    *lockmap.LockMap
	acquired []common.Bnum
}

func Begin(d disk.Disk, l *lockmap.LockMap) *TwoPhase {
	trans := &TwoPhase{
		d:        d,
		bufs:     buf.MkBufMap(),
		locks:    l,
		acquired: make([]common.Bnum, 0),
	}
	util.DPrintf(3, "tp Begin: %p\n", trans)
	return trans
}

// Acquire locks bn unless this TwoPhase already holds it.
func (twophase *TwoPhase) Acquire(bn common.Bnum) {
	for _, acq := range twophase.acquired {
		if bn == acq {
			return
		}
	}
	twophase.locks.Acquire(bn)
	twophase.acquired = append(twophase.acquired, bn)
}

func (twophase *TwoPhase) Release() {
	last := len(twophase.acquired) - 1
	twophase.locks.Release(twophase.acquired[last])
	twophase.acquired = twophase.acquired[:last]
}

func (twophase *TwoPhase) ReleaseAll() {
	for len(twophase.acquired) != 0 {
		twophase.Release()
	}
}

// ReadBuf locks bn and returns its contents, reading the disk only the
// first time.
func (twophase *TwoPhase) ReadBuf(bn common.Bnum) (*buf.Buf, error) {
	twophase.Acquire(bn)
	if b := twophase.bufs.Lookup(bn); b != nil {
		return b, nil
	}
	b, err := buf.MkBufLoad(twophase.d, bn)
	if err != nil {
		return nil, err
	}
	twophase.bufs.Insert(b)
	return b, nil
}

// OverWrite replaces block bn without reading it
func (twophase *TwoPhase) OverWrite(bn common.Bnum, blk disk.Block) {
	twophase.Acquire(bn)
	b := twophase.bufs.Lookup(bn)
	if b == nil {
		b = buf.MkBuf(bn, blk)
		twophase.bufs.Insert(b)
	} else {
		b.Blk = blk
	}
	b.SetDirty()
}

// NDirty reports how many blocks Commit would write.
func (twophase *TwoPhase) NDirty() uint64 {
	return twophase.bufs.Ndirty()
}

// Commit writes every dirty buf back in block order and releases all locks.
// The first failed write stops the commit; blocks before it stay written.
func (twophase *TwoPhase) Commit() error {
	defer twophase.ReleaseAll()
	util.DPrintf(3, "tp Commit %p: %d dirty\n", twophase, twophase.NDirty())
	for _, b := range twophase.bufs.DirtyBufs() {
		if !twophase.locks.Held(b.Blkno) {
			panic("twophase: writing an unlocked block")
		}
		if err := b.WriteDirect(twophase.d); err != nil {
			return err
		}
	}
	return nil
}
