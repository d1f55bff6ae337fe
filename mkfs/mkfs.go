// Package mkfs builds images offline: it formats an empty filesystem and
// adds directories and files to it. Tests use it to make fixtures and the
// CLI uses it to create and populate images. A mounted filesystem never
// allocates; only the builder sets bitmap bits.
package mkfs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mit-pdos/blockfs/alloc"
	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/dirent"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/inode"
	"github.com/mit-pdos/blockfs/super"
	"github.com/mit-pdos/blockfs/util"
)

var (
	ErrFull    = errors.New("image full")
	ErrTooBig  = errors.New("file needs more than the direct pointers hold")
	ErrBadName = errors.New("bad name")
)

// Meta is the ownership and permission bits of a new inode.
type Meta struct {
	Perm uint32
	Uid  uint16
	Gid  uint16
}

// RootMeta is the root directory's: world-writable, owned by root.
var RootMeta = Meta{Perm: 0777}

type dir struct {
	inum   common.Inum
	ip     *inode.Inode
	blocks []*dirent.Block // one per pointer in use, in pointer order
}

type Builder struct {
	d    disk.Disk
	size uint64
	bits []byte
	next common.Bnum
	now  time.Time
	dirs map[string]*dir
}

// Format writes an empty filesystem of size blocks to d: superblock,
// bitmap with blocks 0-2 in use, and an empty root directory.
func Format(d disk.Disk, size uint64) (*Builder, error) {
	devSize, err := d.Size()
	if err != nil {
		return nil, err
	}
	if size < alloc.Reserved || size > common.NBITBLOCK || size > devSize {
		return nil, fmt.Errorf("formatting %d blocks on a %d-block device: %w",
			size, devSize, super.ErrInvalidImage)
	}
	b := &Builder{
		d:    d,
		size: size,
		bits: make([]byte, disk.BlockSize),
		next: alloc.Reserved,
		now:  time.Now(),
		dirs: make(map[string]*dir),
	}
	for n := uint64(0); n < alloc.Reserved; n++ {
		alloc.MarkUsed(b.bits, n)
	}
	b.dirs["/"] = &dir{inum: common.ROOTINUM, ip: b.mkInode(inode.S_IFDIR, RootMeta)}

	sb := super.Superblock{Magic: common.MAGIC, DiskSize: uint32(size)}
	if err := d.Write(common.SUPERBLK, sb.Encode()); err != nil {
		return nil, fmt.Errorf("writing superblock: %w", err)
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b, nil
}

// SetTime fixes the creation and modification time of inodes made from
// now on.
func (b *Builder) SetTime(t time.Time) {
	b.now = t
}

func (b *Builder) mkInode(kind uint32, m Meta) *inode.Inode {
	ts := uint32(b.now.Unix())
	return &inode.Inode{
		Uid:   m.Uid,
		Gid:   m.Gid,
		Mode:  kind | m.Perm&inode.PERMMASK,
		Ctime: ts,
		Mtime: ts,
	}
}

func (b *Builder) allocBlock() (common.Bnum, error) {
	for b.next < b.size {
		bn := b.next
		b.next++
		if !alloc.MkBitmap(b.bits).IsUsed(bn) {
			alloc.MarkUsed(b.bits, bn)
			return bn, nil
		}
	}
	return 0, ErrFull
}

// Used reports how many blocks are marked in use.
func (b *Builder) Used() uint64 {
	return b.size - alloc.MkBitmap(b.bits).NumFree(0, b.size)
}

func splitPath(p string) (string, dirent.Name, error) {
	var parts []string
	for _, c := range strings.Split(p, "/") {
		if c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return "", "", fmt.Errorf("`%s`: %w", p, ErrBadName)
	}
	if len(parts) > common.MAXPATHLEN {
		return "", "", fmt.Errorf("`%s`: more than %d components: %w",
			p, common.MAXPATHLEN, ErrBadName)
	}
	name := parts[len(parts)-1]
	if len(name) > common.MAXNAMELEN {
		return "", "", fmt.Errorf("`%s`: longer than %d bytes: %w",
			name, common.MAXNAMELEN, ErrBadName)
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/"), dirent.Name(name), nil
}

func (b *Builder) parent(p string) (*dir, string, dirent.Name, error) {
	dp, name, err := splitPath(p)
	if err != nil {
		return nil, "", "", err
	}
	pd, ok := b.dirs[dp]
	if !ok {
		return nil, "", "", fmt.Errorf("parent `%s`: %w", dp, common.ErrNotFound)
	}
	for _, blk := range pd.blocks {
		if _, ok := blk.Find(name); ok {
			return nil, "", "", fmt.Errorf("`%s`: %w", p, common.ErrExist)
		}
	}
	return pd, strings.TrimSuffix(dp, "/") + "/" + string(name), name, nil
}

// addEntry reuses the first free slot, or starts a new entry block.
func (b *Builder) addEntry(d *dir, name dirent.Name, inum common.Inum) error {
	de := dirent.DirEnt{Valid: true, Inum: inum, Name: name}
	for _, blk := range d.blocks {
		for i := range blk {
			if !blk[i].Valid {
				blk[i] = de
				return nil
			}
		}
	}
	if uint64(len(d.blocks)) == common.NDIRECT {
		return fmt.Errorf("directory %d: %w", d.inum, ErrTooBig)
	}
	bn, err := b.allocBlock()
	if err != nil {
		return err
	}
	blk := new(dirent.Block)
	blk[0] = de
	d.ip.Ptrs[len(d.blocks)] = uint32(bn)
	d.blocks = append(d.blocks, blk)
	d.ip.Size = int32(uint64(len(d.blocks)) * disk.BlockSize)
	return nil
}

// Mkdir adds an empty directory. Its parent must already exist.
func (b *Builder) Mkdir(p string, m Meta) (common.Inum, error) {
	pd, full, name, err := b.parent(p)
	if err != nil {
		return 0, err
	}
	bn, err := b.allocBlock()
	if err != nil {
		return 0, err
	}
	inum := common.Inum(bn)
	if err := b.addEntry(pd, name, inum); err != nil {
		return 0, err
	}
	b.dirs[full] = &dir{inum: inum, ip: b.mkInode(inode.S_IFDIR, m)}
	util.DPrintf(3, "mkfs: mkdir %s -> %d\n", full, inum)
	return inum, nil
}

// WriteFile adds a regular file holding data. The inode is written
// immediately; directories are written by Flush.
func (b *Builder) WriteFile(p string, data []byte, m Meta) (common.Inum, error) {
	if uint64(len(data)) > common.NDIRECT*disk.BlockSize {
		return 0, fmt.Errorf("`%s`: %d bytes: %w", p, len(data), ErrTooBig)
	}
	ip := b.mkInode(inode.S_IFREG, m)
	ip.Size = int32(len(data))
	nblk := ip.NBlocks()
	pd, full, name, err := b.parent(p)
	if err != nil {
		return 0, err
	}
	bn, err := b.allocBlock()
	if err != nil {
		return 0, err
	}
	for i := uint64(0); i < nblk; i++ {
		dbn, err := b.allocBlock()
		if err != nil {
			return 0, err
		}
		blk := make(disk.Block, disk.BlockSize)
		copy(blk, data[i*disk.BlockSize:util.Min(uint64(len(data)), (i+1)*disk.BlockSize)])
		if err := b.d.Write(dbn, blk); err != nil {
			return 0, err
		}
		ip.Ptrs[i] = uint32(dbn)
	}
	if err := b.d.Write(bn, ip.Encode()); err != nil {
		return 0, err
	}
	inum := common.Inum(bn)
	if err := b.addEntry(pd, name, inum); err != nil {
		return 0, err
	}
	util.DPrintf(3, "mkfs: file %s -> %d (%d bytes)\n", full, inum, len(data))
	return inum, nil
}

// Unlink clears the entry's valid flag and leaves the slot as a tombstone.
// Its blocks stay marked in use.
func (b *Builder) Unlink(p string) error {
	dp, name, err := splitPath(p)
	if err != nil {
		return err
	}
	pd, ok := b.dirs[dp]
	if !ok {
		return fmt.Errorf("parent `%s`: %w", dp, common.ErrNotFound)
	}
	for _, blk := range pd.blocks {
		if i, ok := blk.Find(name); ok {
			blk[i].Valid = false
			full := strings.TrimSuffix(dp, "/") + "/" + string(name)
			for k := range b.dirs {
				if k == full || strings.HasPrefix(k, full+"/") {
					delete(b.dirs, k)
				}
			}
			return nil
		}
	}
	return fmt.Errorf("`%s`: %w", p, common.ErrNotFound)
}

// Flush writes the bitmap and every directory's inode and entry blocks.
func (b *Builder) Flush() error {
	if err := b.d.Write(common.BITMAPBLK, util.CloneByteSlice(b.bits)); err != nil {
		return fmt.Errorf("writing bitmap: %w", err)
	}
	for p, d := range b.dirs {
		for i, blk := range d.blocks {
			if err := b.d.Write(common.Bnum(d.ip.Ptrs[i]), blk.Encode()); err != nil {
				return fmt.Errorf("writing entries of `%s`: %w", p, err)
			}
		}
		if err := b.d.Write(common.Bnum(d.inum), d.ip.Encode()); err != nil {
			return fmt.Errorf("writing inode of `%s`: %w", p, err)
		}
	}
	return b.d.Barrier()
}
