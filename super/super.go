// Package super reads the superblock and bitmap that describe a mounted
// image.
package super

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/blockfs/alloc"
	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/util"
)

// ErrInvalidImage is returned by Load for an image it cannot mount. It is an
// I/O fault as far as callers are concerned.
var ErrInvalidImage = fmt.Errorf("invalid image: %w", common.ErrIO)

// Superblock is the on-disk record at block 0: a 4-byte magic, the disk
// size in blocks, then zero padding to the end of the block.
type Superblock struct {
	Magic    uint32
	DiskSize uint32
}

func (sb *Superblock) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt32(sb.Magic)
	enc.PutInt32(sb.DiskSize)
	return enc.Finish()
}

func Decode(blk disk.Block) Superblock {
	dec := marshal.NewDec(blk)
	magic := dec.GetInt32()
	size := dec.GetInt32()
	return Superblock{Magic: magic, DiskSize: size}
}

// FsSuper is the state loaded once at mount and read by every operation
// until unmount. Nothing mutates it.
type FsSuper struct {
	Size   uint64 // disk size in blocks, from the superblock
	Bitmap *alloc.Bitmap
}

// Load reads and validates the superblock, then loads the bitmap block.
func Load(d disk.Disk) (*FsSuper, error) {
	blk, err := d.Read(common.SUPERBLK)
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w: %v", common.ErrIO, err)
	}
	sb := Decode(blk)
	if sb.Magic != common.MAGIC {
		return nil, fmt.Errorf("decoded magic `%#x`: %w", sb.Magic, ErrInvalidImage)
	}
	size := uint64(sb.DiskSize)
	if size < alloc.Reserved {
		return nil, fmt.Errorf("disk size %d below %d reserved blocks: %w",
			size, alloc.Reserved, ErrInvalidImage)
	}
	if size > common.NBITBLOCK {
		return nil, fmt.Errorf("disk size %d exceeds the %d blocks one bitmap "+
			"block describes: %w", size, common.NBITBLOCK, ErrInvalidImage)
	}
	devSize, err := d.Size()
	if err != nil {
		return nil, fmt.Errorf("sizing device: %w: %v", common.ErrIO, err)
	}
	if size > devSize {
		return nil, fmt.Errorf("disk size %d exceeds device size %d: %w",
			size, devSize, ErrInvalidImage)
	}

	bits, err := d.Read(common.BITMAPBLK)
	if err != nil {
		return nil, fmt.Errorf("reading bitmap: %w: %v", common.ErrIO, err)
	}
	util.DPrintf(1, "super: %d blocks\n", size)
	return &FsSuper{Size: size, Bitmap: alloc.MkBitmap(bits)}, nil
}

// NumFree counts free blocks from block 2 to the end of the disk; the
// superblock and bitmap are not counted at all. It scans the whole bitmap.
func (fs *FsSuper) NumFree() uint64 {
	return fs.Bitmap.NumFree(uint64(common.ROOTINUM), fs.Size)
}

// NumData is the number of blocks past the superblock and bitmap.
func (fs *FsSuper) NumData() uint64 {
	return fs.Size - uint64(common.ROOTINUM)
}

// InBounds reports whether bn names a block on this disk.
func (fs *FsSuper) InBounds(bn common.Bnum) bool {
	return bn < fs.Size
}
