package alloc

import (
	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/util"
)

// Bitmap is the block-usage bitmap loaded at mount. Bit n (bit n%8 of byte
// n/8) is set when block n is in use.
//
// The mounted filesystem never allocates or frees, so a Bitmap is read-only
// after Load and safe to share.
type Bitmap struct {
	bits []byte
}

// MkBitmap takes ownership of bits.
func MkBitmap(bits []byte) *Bitmap {
	return &Bitmap{bits: bits}
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}

// Len is the number of blocks the bitmap can describe.
func (bm *Bitmap) Len() uint64 {
	return uint64(len(bm.bits)) * 8
}

// IsUsed reports whether block n is marked in use. Blocks past the end of
// the bitmap read as in use.
func (bm *Bitmap) IsUsed(n uint64) bool {
	if n >= bm.Len() {
		return true
	}
	return bm.bits[n/8]&(1<<(n%8)) != 0
}

// NumFree counts clear bits in [start, end).
func (bm *Bitmap) NumFree(start uint64, end uint64) uint64 {
	end = util.Min(end, bm.Len())
	if end <= start {
		return 0
	}
	var used uint64
	var n = start
	for n < end {
		// whole bytes once aligned
		if n%8 == 0 && n+8 <= end {
			used += popCnt(bm.bits[n/8])
			n += 8
			continue
		}
		if bm.IsUsed(n) {
			used++
		}
		n++
	}
	return end - start - used
}

// MarkUsed sets bit n in a raw bitmap. It is for building images offline;
// a mounted filesystem does not mutate its Bitmap.
func MarkUsed(bits []byte, n uint64) {
	if n >= uint64(len(bits))*8 {
		panic("MarkUsed")
	}
	bits[n/8] |= 1 << (n % 8)
}

// Reserved is the number of leading blocks always in use: superblock,
// bitmap and root inode.
const Reserved = uint64(common.ROOTINUM) + 1
