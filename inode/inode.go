// Package inode encodes the one-block inode record. An inode's number is
// the block it lives in.
package inode

import (
	"time"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/util"
)

const (
	S_IFMT  uint32 = 0170000
	S_IFDIR uint32 = 0040000
	S_IFREG uint32 = 0100000

	PERMMASK uint32 = 07777
)

// Inode layout: uid (2), gid (2), mode (4), ctime (4), mtime (4),
// size (4, signed), then NDIRECT 4-byte direct block pointers.
type Inode struct {
	Uid   uint16
	Gid   uint16
	Mode  uint32
	Ctime uint32
	Mtime uint32
	Size  int32
	Ptrs  [common.NDIRECT]uint32
}

// Decode never fails; the fields are not checked.
func Decode(blk disk.Block) *Inode {
	ip := new(Inode)
	dec := marshal.NewDec(blk)
	ids := dec.GetInt32()
	ip.Uid = uint16(ids)
	ip.Gid = uint16(ids >> 16)
	ip.Mode = dec.GetInt32()
	ip.Ctime = dec.GetInt32()
	ip.Mtime = dec.GetInt32()
	ip.Size = int32(dec.GetInt32())
	for i := range ip.Ptrs {
		ip.Ptrs[i] = dec.GetInt32()
	}
	return ip
}

func (ip *Inode) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt32(uint32(ip.Uid) | uint32(ip.Gid)<<16)
	enc.PutInt32(ip.Mode)
	enc.PutInt32(ip.Ctime)
	enc.PutInt32(ip.Mtime)
	enc.PutInt32(uint32(ip.Size))
	for _, p := range ip.Ptrs {
		enc.PutInt32(p)
	}
	return enc.Finish()
}

func (ip *Inode) IsDir() bool {
	return ip.Mode&S_IFMT == S_IFDIR
}

// Len is the size in bytes; a negative size on disk reads as empty.
func (ip *Inode) Len() uint64 {
	if ip.Size < 0 {
		return 0
	}
	return uint64(ip.Size)
}

// NBlocks is the number of direct pointers the size covers.
func (ip *Inode) NBlocks() uint64 {
	return util.RoundUp(ip.Len(), disk.BlockSize)
}

// SetPerm replaces the permission bits and keeps the file type.
func (ip *Inode) SetPerm(mode uint32) {
	ip.Mode = ip.Mode&^PERMMASK | mode&PERMMASK
}

// Attr is the host-independent view of an inode's attributes.
type Attr struct {
	Inum   common.Inum
	Mode   uint32
	Nlink  uint32
	Uid    uint32
	Gid    uint32
	Size   uint64
	Blocks uint64
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
}

// MkAttr projects ip. There is no access or change time on disk, so both
// report the modification time; there are no hard links, so Nlink is 1.
// Blocks is the size in whole blocks, rounded down.
func (ip *Inode) MkAttr(inum common.Inum) Attr {
	mtime := time.Unix(int64(ip.Mtime), 0)
	return Attr{
		Inum:   inum,
		Mode:   ip.Mode,
		Nlink:  1,
		Uid:    uint32(ip.Uid),
		Gid:    uint32(ip.Gid),
		Size:   ip.Len(),
		Blocks: ip.Len() / disk.BlockSize,
		Atime:  mtime,
		Mtime:  mtime,
		Ctime:  mtime,
	}
}

func (a Attr) IsDir() bool {
	return a.Mode&S_IFMT == S_IFDIR
}
