package dirent

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/disk"
)

func TestMkName(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(Name("file.1k"), MkName("file.1k"))
	long := "twenty-seven-byte-file-name"
	assert.Len(long, common.MAXNAMELEN)
	assert.Equal(Name(long), MkName(long))
	assert.Equal(Name(long), MkName(long+"-and-more"), "truncated to 27 bytes")
	assert.Equal(Name(""), MkName(""))
}

func TestEntryLayout(t *testing.T) {
	assert := assert.New(t)
	var b Block
	b[0] = DirEnt{Valid: true, Inum: 5, Name: "file.1k"}
	b[1] = DirEnt{Valid: false, Inum: 9, Name: "gone"}
	b[common.DIRENTBLK-1] = DirEnt{Valid: true, Inum: 1<<31 - 1, Name: MkName(strings.Repeat("x", 40))}
	blk := b.Encode()

	le := binary.LittleEndian
	assert.Len(blk, int(disk.BlockSize))
	assert.Equal(uint32(5<<1|1), le.Uint32(blk[0:]))
	assert.Equal([]byte("file.1k\x00"), blk[4:12])
	assert.Equal(uint32(9<<1), le.Uint32(blk[32:]), "tombstone keeps its inode")
	last := blk[disk.BlockSize-32:]
	assert.Equal(uint32(0xffffffff), le.Uint32(last))
	assert.Equal(byte(0), last[31], "27 visible bytes plus terminator")

	assert.Equal(&b, DecodeBlock(blk))
}

func TestUnterminatedNameOnDisk(t *testing.T) {
	blk := make(disk.Block, disk.BlockSize)
	binary.LittleEndian.PutUint32(blk, 3<<1|1)
	copy(blk[4:32], strings.Repeat("y", 28))
	b := DecodeBlock(blk)
	assert.Equal(t, MkName(strings.Repeat("y", 28)), b[0].Name)
	assert.Len(t, string(b[0].Name), common.MAXNAMELEN)
}

func TestFindSkipsTombstones(t *testing.T) {
	assert := assert.New(t)
	var b Block
	b[2] = DirEnt{Valid: false, Inum: 7, Name: "a"}
	b[4] = DirEnt{Valid: true, Inum: 8, Name: "a"}
	b[6] = DirEnt{Valid: true, Inum: 9, Name: "b"}
	i, ok := b.Find("a")
	assert.True(ok)
	assert.Equal(uint64(4), i)
	_, ok = b.Find("c")
	assert.False(ok)

	blk := b.Encode()
	de, i, ok := Lookup(blk, "b")
	assert.True(ok)
	assert.Equal(uint64(6), i)
	assert.Equal(common.Inum(9), de.Inum)
	_, _, ok = Lookup(blk, "zzz")
	assert.False(ok)

	ents := Valid(blk)
	if assert.Len(ents, 2) {
		assert.Equal(Name("a"), ents[0].Name)
		assert.Equal(Name("b"), ents[1].Name)
	}
}

func TestEmptyBlock(t *testing.T) {
	blk := make(disk.Block, disk.BlockSize)
	assert.Empty(t, Valid(blk))
	_, _, ok := Lookup(blk, "")
	assert.False(t, ok, "zeroed slots are invalid even for the empty name")
}
