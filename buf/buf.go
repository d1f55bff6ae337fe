// buf holds the whole disk blocks read or written by one in-progress
// mutation, until they are written back.
package buf

import (
	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/util"
)

// A Buf is a copy of one disk block (an inode or a directory-entry array)
type Buf struct {
	Blkno common.Bnum
	Blk   disk.Block
	dirty bool // has this block been written to?
}

func MkBuf(blkno common.Bnum, blk disk.Block) *Buf {
	b := &Buf{
		Blkno: blkno,
		Blk:   blk,
		dirty: false,
	}
	return b
}

// MkBufLoad reads block blkno from d into a new, clean buf
func MkBufLoad(d disk.Disk, blkno common.Bnum) (*Buf, error) {
	blk, err := d.Read(blkno)
	if err != nil {
		return nil, err
	}
	return MkBuf(blkno, blk), nil
}

func (buf *Buf) IsDirty() bool {
	return buf.dirty
}

func (buf *Buf) SetDirty() {
	buf.dirty = true
}

// WriteDirect writes the block back to d; the buf stays dirty if the
// write fails.
func (buf *Buf) WriteDirect(d disk.Disk) error {
	util.DPrintf(5, "%d: write back\n", buf.Blkno)
	if err := d.Write(buf.Blkno, buf.Blk); err != nil {
		return err
	}
	buf.dirty = false
	return nil
}
