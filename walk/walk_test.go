package walk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/dirent"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/inode"
	"github.com/mit-pdos/blockfs/mkfs"
	"github.com/mit-pdos/blockfs/super"
)

type fixture struct {
	d     *disk.FaultDisk
	w     *Walker
	inums map[string]common.Inum
}

// mkFixture builds
//
//	/dir/hello.txt   "Hello, world"
//	/dir/sub/
//	/file            "x"
//	/gone            (tombstone)
func mkFixture(t *testing.T) *fixture {
	d := disk.NewFaultDisk(disk.NewMemDisk(64))
	b, err := mkfs.Format(d, 64)
	require.NoError(t, err)
	must := func(inum common.Inum, err error) common.Inum {
		require.NoError(t, err)
		return inum
	}
	inums := map[string]common.Inum{
		"/gone":          must(b.WriteFile("/gone", nil, mkfs.Meta{})),
		"/dir":           must(b.Mkdir("/dir", mkfs.Meta{Perm: 0755})),
		"/dir/hello.txt": must(b.WriteFile("/dir/hello.txt", []byte("Hello, world"), mkfs.Meta{Perm: 0644})),
		"/dir/sub":       must(b.Mkdir("/dir/sub", mkfs.Meta{Perm: 0755})),
		"/file":          must(b.WriteFile("/file", []byte("x"), mkfs.Meta{Perm: 0644})),
	}
	require.NoError(t, b.Unlink("/gone"))
	require.NoError(t, b.Flush())

	fs, err := super.Load(d)
	require.NoError(t, err)
	return &fixture{d: d, w: MkWalker(d, fs), inums: inums}
}

func TestWalkRoot(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)
	for _, p := range []string{"/", "", "///"} {
		loc, err := f.w.Walk(p, SelBlock)
		assert.NoError(err)
		assert.True(loc.IsRoot())
		assert.Equal(common.ROOTINUM, loc.Ent.Inum)
		assert.Equal(common.NULLINUM, loc.Parent)
		assert.Nil(loc.Block)
	}
}

func TestWalkSelectors(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)

	loc, err := f.w.Walk("/dir/hello.txt", SelEntry)
	assert.NoError(err)
	assert.Equal(f.inums["/dir/hello.txt"], loc.Ent.Inum)
	assert.Equal(dirent.Name("hello.txt"), loc.Ent.Name)
	assert.False(loc.IsRoot())
	assert.Equal(common.NULLINUM, loc.Parent)
	assert.Nil(loc.Block)

	loc, err = f.w.Walk("/dir/hello.txt", SelParent)
	assert.NoError(err)
	assert.Equal(f.inums["/dir"], loc.Parent)
	assert.Equal(uint64(0), loc.Addr.Slot())
	assert.Nil(loc.Block)

	loc, err = f.w.Walk("/dir/sub", SelBlock)
	assert.NoError(err)
	assert.Equal(f.inums["/dir"], loc.Parent)
	assert.Equal(uint64(1), loc.Addr.Slot())
	assert.NotNil(loc.Block)
	assert.Equal(loc.Ent, loc.Block[loc.Addr.Slot()])
	assert.Equal(dirent.Name("hello.txt"), loc.Block[0].Name)

	dir, err := f.w.ReadInode(f.inums["/dir"])
	assert.NoError(err)
	assert.Equal(uint64(dir.Ptrs[0]), loc.Addr.Blkno)
}

func TestWalkErrors(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)

	_, err := f.w.Walk("/nope", SelEntry)
	assert.Equal(common.ErrNotFound, common.Kind(err))
	_, err = f.w.Walk("/dir/nope/x", SelEntry)
	assert.Equal(common.ErrNotFound, common.Kind(err))
	_, err = f.w.Walk("/file/x", SelEntry)
	assert.Equal(common.ErrNotDir, common.Kind(err))
	_, err = f.w.Walk("/dir/hello.txt/x", SelEntry)
	assert.Equal(common.ErrNotDir, common.Kind(err))
	_, err = f.w.Walk("/gone", SelEntry)
	assert.Equal(common.ErrNotFound, common.Kind(err))
}

func TestWalkDoubleSlash(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)
	loc, err := f.w.Walk("//dir///hello.txt/", SelEntry)
	assert.NoError(err)
	assert.Equal(f.inums["/dir/hello.txt"], loc.Ent.Inum)
}

func TestWalkTruncatesNames(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(16)
	b, err := mkfs.Format(d, 16)
	require.NoError(t, err)
	inum, err := b.WriteFile("/abcdefghijklmnopqrstuvwxyz0", nil, mkfs.Meta{})
	require.NoError(t, err)
	require.NoError(t, b.Flush())
	fs, err := super.Load(d)
	require.NoError(t, err)
	w := MkWalker(d, fs)

	loc, err := w.Walk("/abcdefghijklmnopqrstuvwxyz0-and-more", SelEntry)
	assert.NoError(err)
	assert.Equal(inum, loc.Ent.Inum)
}

func TestWalkIgnoresPastTenComponents(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(64)
	b, err := mkfs.Format(d, 64)
	require.NoError(t, err)
	p := ""
	for i := 0; i < 9; i++ {
		p += "/d"
		_, err := b.Mkdir(p, mkfs.Meta{})
		require.NoError(t, err)
	}
	inum, err := b.WriteFile(p+"/f", nil, mkfs.Meta{})
	require.NoError(t, err)
	require.NoError(t, b.Flush())
	fs, err := super.Load(d)
	require.NoError(t, err)
	w := MkWalker(d, fs)

	loc, err := w.Walk(p+"/f/anything/else", SelEntry)
	assert.NoError(err)
	assert.Equal(inum, loc.Ent.Inum)
}

// A directory whose first pointer is zero: the scan must skip it and
// still find entries behind it.
func TestWalkSkipsZeroPointer(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)
	dinum := f.inums["/dir"]
	dir, err := f.w.ReadInode(dinum)
	require.NoError(t, err)
	dir.Ptrs[1] = dir.Ptrs[0]
	dir.Ptrs[0] = 0
	require.NoError(t, f.d.Write(uint64(dinum), dir.Encode()))

	loc, err := f.w.Walk("/dir/hello.txt", SelParent)
	assert.NoError(err)
	assert.Equal(uint64(dir.Ptrs[1]), loc.Addr.Blkno)

	ents, err := f.w.ReadDir(dir)
	assert.NoError(err)
	assert.Len(ents, 2)
}

// When two pointers hold the same name, the earlier pointer wins.
func TestWalkFirstMatchWins(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)
	dinum := f.inums["/dir"]
	dir, err := f.w.ReadInode(dinum)
	require.NoError(t, err)

	var second dirent.Block
	second[0] = dirent.DirEnt{Valid: true, Inum: 60, Name: "hello.txt"}
	require.NoError(t, f.d.Write(63, second.Encode()))
	dir.Ptrs[1] = 63
	require.NoError(t, f.d.Write(uint64(dinum), dir.Encode()))

	loc, err := f.w.Walk("/dir/hello.txt", SelEntry)
	assert.NoError(err)
	assert.Equal(f.inums["/dir/hello.txt"], loc.Ent.Inum)
}

func TestWalkNonDirInodeInPath(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)
	// an entry whose target is a regular file, reached mid-path
	ip := &inode.Inode{Mode: inode.S_IFREG | 0644}
	require.NoError(t, f.d.Write(uint64(f.inums["/dir/sub"]), ip.Encode()))
	_, err := f.w.Walk("/dir/sub/x", SelEntry)
	assert.Equal(common.ErrNotDir, common.Kind(err))
}

func TestWalkIOError(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)
	f.d.FailRead(uint64(f.inums["/dir"]))
	_, err := f.w.Walk("/dir/hello.txt", SelEntry)
	assert.Equal(common.ErrIO, common.Kind(err))
	// the root is never read for "/"
	_, err = f.w.Walk("/", SelEntry)
	assert.NoError(err)
	f.d.Heal()
	_, err = f.w.Walk("/dir/hello.txt", SelEntry)
	assert.NoError(err)
}

func TestWalkPointerPastEnd(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)
	dinum := f.inums["/dir"]
	dir, err := f.w.ReadInode(dinum)
	require.NoError(t, err)
	dir.Ptrs[0] = 1000
	require.NoError(t, f.d.Write(uint64(dinum), dir.Encode()))
	_, err = f.w.Walk("/dir/hello.txt", SelEntry)
	assert.Equal(common.ErrIO, common.Kind(err))
}

func TestReadDir(t *testing.T) {
	assert := assert.New(t)
	f := mkFixture(t)
	root, err := f.w.ReadInode(common.ROOTINUM)
	require.NoError(t, err)
	ents, err := f.w.ReadDir(root)
	assert.NoError(err)
	var names []dirent.Name
	for _, de := range ents {
		names = append(names, de.Name)
	}
	assert.Equal([]dirent.Name{"dir", "file"}, names)
}
