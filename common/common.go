package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	NBITBLOCK uint64 = disk.BlockSize * 8

	MAGIC uint32 = 0x37363030

	SUPERBLK  Bnum = 0
	BITMAPBLK Bnum = 1

	MAXPATHLEN = 10 // components kept from a path
	MAXNAMELEN = 27 // visible bytes in a name

	DIRENTSZ   uint64 = 32
	NAMESZ     uint64 = DIRENTSZ - 4 // with trailing NUL
	DIRENTBLK  uint64 = disk.BlockSize / DIRENTSZ
	INODEHDRSZ uint64 = 20
	NDIRECT    uint64 = disk.BlockSize/4 - 5
)

// Inum is the block number holding an inode record.
type Inum uint32
type Bnum = uint64

const (
	NULLINUM Inum = 0
	ROOTINUM Inum = 2
	NULLBNUM Bnum = 0
)
