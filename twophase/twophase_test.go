package twophase

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/lockmap"
)

func mkBlock(b0 byte) disk.Block {
	b := make(disk.Block, disk.BlockSize)
	b[0] = b0
	return b
}

func TestReadModifyWrite(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewFaultDisk(disk.NewMemDisk(10))
	l := lockmap.MkLockMap()
	require.NoError(t, d.Write(4, mkBlock(1)))

	tp := Begin(d, l)
	b, err := tp.ReadBuf(4)
	require.NoError(t, err)
	assert.True(l.Held(4))
	b.Blk[0] = 2
	b.SetDirty()

	b2, err := tp.ReadBuf(4)
	require.NoError(t, err)
	assert.Equal(byte(2), b2.Blk[0], "second read sees the buffered change")

	tp.OverWrite(6, mkBlock(6))
	assert.Equal(uint64(2), tp.NDirty())
	reads, _ := d.Counts()
	assert.Equal(uint64(1), reads, "buffered block read once")

	assert.NoError(tp.Commit())
	assert.False(l.Held(4))
	assert.False(l.Held(6))

	blk, _ := d.Read(4)
	assert.Equal(byte(2), blk[0])
	blk, _ = d.Read(6)
	assert.Equal(byte(6), blk[0])
}

func TestCommitWriteFailureReleases(t *testing.T) {
	d := disk.NewFaultDisk(disk.NewMemDisk(10))
	l := lockmap.MkLockMap()
	d.FailWrite(5)

	tp := Begin(d, l)
	tp.OverWrite(5, mkBlock(5))
	assert.Error(t, tp.Commit())
	assert.False(t, l.Held(5), "locks released on failure")
}

func TestReadFailure(t *testing.T) {
	d := disk.NewFaultDisk(disk.NewMemDisk(10))
	l := lockmap.MkLockMap()
	d.FailRead(3)

	tp := Begin(d, l)
	_, err := tp.ReadBuf(3)
	assert.Error(t, err)
	tp.ReleaseAll()
	assert.False(t, l.Held(3))
}

func TestConcurrentIncrements(t *testing.T) {
	d := disk.NewMemDisk(10)
	l := lockmap.MkLockMap()
	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tp := Begin(d, l)
			b, err := tp.ReadBuf(2)
			if err != nil {
				tp.ReleaseAll()
				return
			}
			b.Blk[0]++
			b.SetDirty()
			tp.Commit()
		}()
	}
	wg.Wait()
	blk, _ := d.Read(2)
	assert.Equal(t, byte(n), blk[0], "no lost updates")
}
