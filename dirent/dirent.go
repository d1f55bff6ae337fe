// Package dirent encodes directory-entry arrays. A directory data block
// holds DIRENTBLK fixed 32-byte entries: a 4-byte word packing the valid
// flag (bit 0) and the inode number (bits 1-31), then a 28-byte
// NUL-terminated name.
package dirent

import (
	"bytes"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/disk"
)

// Name is a file name of at most MAXNAMELEN bytes.
type Name string

// MkName truncates s to MAXNAMELEN bytes. This is the only place names
// are truncated: a longer path component silently matches the entry named
// by its first MAXNAMELEN bytes.
func MkName(s string) Name {
	if len(s) > common.MAXNAMELEN {
		s = s[:common.MAXNAMELEN]
	}
	return Name(s)
}

func (n Name) String() string { return string(n) }

func decodeName(b []byte) Name {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return MkName(string(b))
}

func (n Name) encode() []byte {
	b := make([]byte, common.NAMESZ)
	copy(b, n)
	return b
}

// An entry with Valid cleared is an unused slot or tombstone.
type DirEnt struct {
	Valid bool
	Inum  common.Inum
	Name  Name
}

const inumMask = 1<<31 - 1

func decodeEnt(dec marshal.Dec) DirEnt {
	w := dec.GetInt32()
	name := dec.GetBytes(common.NAMESZ)
	return DirEnt{
		Valid: w&1 == 1,
		Inum:  common.Inum(w >> 1),
		Name:  decodeName(name),
	}
}

func (de DirEnt) put(enc marshal.Enc) {
	w := (uint32(de.Inum) & inumMask) << 1
	if de.Valid {
		w |= 1
	}
	enc.PutInt32(w)
	enc.PutBytes(de.Name.encode())
}

// Block is one decoded directory data block, in slot order.
type Block [common.DIRENTBLK]DirEnt

func DecodeBlock(blk disk.Block) *Block {
	b := new(Block)
	dec := marshal.NewDec(blk)
	for i := range b {
		b[i] = decodeEnt(dec)
	}
	return b
}

func (b *Block) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	for _, de := range b {
		de.put(enc)
	}
	return enc.Finish()
}

// Find returns the first valid slot named name.
func (b *Block) Find(name Name) (uint64, bool) {
	for i, de := range b {
		if de.Valid && de.Name == name {
			return uint64(i), true
		}
	}
	return 0, false
}

// Lookup scans a raw block for the first valid entry named name without
// decoding the rest.
func Lookup(blk disk.Block, name Name) (DirEnt, uint64, bool) {
	dec := marshal.NewDec(blk)
	for i := uint64(0); i < common.DIRENTBLK; i++ {
		de := decodeEnt(dec)
		if de.Valid && de.Name == name {
			return de, i, true
		}
	}
	return DirEnt{}, 0, false
}

// Valid returns the valid entries of a raw block in slot order.
func Valid(blk disk.Block) []DirEnt {
	var ents []DirEnt
	for _, de := range DecodeBlock(blk) {
		if de.Valid {
			ents = append(ents, de)
		}
	}
	return ents
}
