package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkBlock(b0 byte) Block {
	b := make(Block, BlockSize)
	b[0] = b0
	b[BlockSize-1] = b0
	return b
}

func testReadWrite(t *testing.T, d Disk) {
	assert := assert.New(t)
	sz, err := d.Size()
	require.NoError(t, err)
	assert.Equal(uint64(10), sz)

	assert.NoError(d.Write(3, mkBlock(7)))
	blk, err := d.Read(3)
	assert.NoError(err)
	assert.Equal(mkBlock(7), blk)

	buf := make(Block, BlockSize)
	assert.NoError(d.ReadTo(3, buf))
	assert.Equal(mkBlock(7), buf)

	blk, err = d.Read(4)
	assert.NoError(err)
	assert.Equal(make(Block, BlockSize), blk, "unwritten blocks are zero")

	_, err = d.Read(10)
	assert.Error(err, "out-of-bounds read")
	assert.Error(d.Write(10, mkBlock(1)), "out-of-bounds write")
	assert.Error(d.Write(3, make(Block, 12)), "short block")
	assert.Error(d.ReadTo(3, make(Block, 12)), "short buffer")
	assert.NoError(d.Barrier())
}

func TestMemDisk(t *testing.T) {
	d := NewMemDisk(10)
	testReadWrite(t, d)
	assert.NoError(t, d.Close())
}

func TestFileDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := NewFileDisk(path, 10)
	require.NoError(t, err)
	testReadWrite(t, d)
	require.NoError(t, d.Close())

	d, err = OpenFileDisk(path, false)
	require.NoError(t, err)
	defer d.Close()
	sz, _ := d.Size()
	assert.Equal(t, uint64(10), sz, "size comes from the file length")
	blk, err := d.Read(3)
	assert.NoError(t, err)
	assert.Equal(t, mkBlock(7), blk, "data survives reopen")
}

func TestFaultDisk(t *testing.T) {
	assert := assert.New(t)
	f := NewFaultDisk(NewMemDisk(10))
	assert.NoError(f.Write(2, mkBlock(1)))

	f.FailRead(2)
	_, err := f.Read(2)
	assert.Error(err)
	assert.Error(f.ReadTo(2, make(Block, BlockSize)))
	_, err = f.Read(3)
	assert.NoError(err, "other blocks unaffected")

	f.FailWrite(5)
	assert.Error(f.Write(5, mkBlock(1)))

	f.Heal()
	blk, err := f.Read(2)
	assert.NoError(err)
	assert.Equal(mkBlock(1), blk)
	assert.NoError(f.Write(5, mkBlock(1)))

	reads, writes := f.Counts()
	assert.Equal(uint64(4), reads)
	assert.Equal(uint64(3), writes)
}
