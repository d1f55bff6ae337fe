package addr

import (
	"github.com/mit-pdos/blockfs/common"
)

// Addr identifies the start of a disk object.
//
// Blkno is the block number containing the object, and Off is the location of
// the object within the block (expressed as a bit offset). The size of the
// object is determined by the context in which Addr is used.
type Addr struct {
	Blkno common.Bnum
	Off   uint64 // offset in bits
}

func MkAddr(blkno common.Bnum, off uint64) Addr {
	return Addr{Blkno: blkno, Off: off}
}

// MkSlotAddr addresses directory-entry slot i of block blkno.
func MkSlotAddr(blkno common.Bnum, i uint64) Addr {
	return MkAddr(blkno, i*common.DIRENTSZ*8)
}

// Slot is the directory-entry slot index a MkSlotAddr address names.
func (a Addr) Slot() uint64 {
	return a.Off / (common.DIRENTSZ * 8)
}
