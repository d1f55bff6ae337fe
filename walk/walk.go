// Package walk resolves paths. Every lookup in the filesystem goes through
// one walk from the root directory entry; a Selector says what the caller
// needs kept from the last step.
package walk

import (
	"fmt"
	"sync"

	"github.com/mit-pdos/blockfs/addr"
	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/dirent"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/inode"
	"github.com/mit-pdos/blockfs/super"
	"github.com/mit-pdos/blockfs/util"
)

// Root is the synthetic entry every walk starts from. It is not stored on
// disk.
var Root = dirent.DirEnt{Valid: true, Inum: common.ROOTINUM, Name: "/"}

type Selector int

const (
	// SelEntry keeps only the final entry.
	SelEntry Selector = iota
	// SelParent also keeps the containing directory and the address of the
	// slot (and so the block) holding the entry.
	SelParent
	// SelBlock also keeps a decoded copy of the block holding the entry.
	SelBlock
)

// Loc is the result of a walk. Parent and Addr are set for SelParent and
// SelBlock, Block only for SelBlock. For the root, Parent is NULLINUM, Addr
// is zero and Block is nil whatever the selector.
type Loc struct {
	Ent    dirent.DirEnt
	Parent common.Inum
	Addr   addr.Addr
	Block  *dirent.Block
}

func (loc *Loc) IsRoot() bool {
	return loc.Ent == Root
}

type Walker struct {
	d    disk.Disk
	fs   *super.FsSuper
	blks *sync.Pool
}

// MkWalker makes the walker for one mount. Scratch blocks are pooled for
// the life of the mount and reused across walk steps.
func MkWalker(d disk.Disk, fs *super.FsSuper) *Walker {
	return &Walker{
		d:  d,
		fs: fs,
		blks: &sync.Pool{
			New: func() interface{} {
				b := make(disk.Block, disk.BlockSize)
				return &b
			},
		},
	}
}

func (w *Walker) getBlock() *disk.Block {
	return w.blks.Get().(*disk.Block)
}

func (w *Walker) putBlock(b *disk.Block) {
	w.blks.Put(b)
}

func (w *Walker) readTo(bn common.Bnum, b disk.Block) error {
	if !w.fs.InBounds(bn) {
		return fmt.Errorf("block %d past end of disk (%d blocks): %w",
			bn, w.fs.Size, common.ErrIO)
	}
	if err := w.d.ReadTo(bn, b); err != nil {
		return fmt.Errorf("reading block %d: %w: %v", bn, common.ErrIO, err)
	}
	return nil
}

// ReadBlock reads data block bn into b.
func (w *Walker) ReadBlock(bn common.Bnum, b disk.Block) error {
	return w.readTo(bn, b)
}

func (w *Walker) ReadInode(inum common.Inum) (*inode.Inode, error) {
	bp := w.getBlock()
	defer w.putBlock(bp)
	b := *bp
	if err := w.readTo(common.Bnum(inum), b); err != nil {
		return nil, fmt.Errorf("inode %d: %w", inum, err)
	}
	return inode.Decode(b), nil
}

// scan looks for name in dir's entry blocks, in pointer order then slot
// order, skipping zero pointers. On success b holds the matching block.
func (w *Walker) scan(dir *inode.Inode, name dirent.Name, b disk.Block) (dirent.DirEnt, addr.Addr, error) {
	for _, p := range dir.Ptrs {
		if p == 0 {
			continue
		}
		bn := common.Bnum(p)
		if err := w.readTo(bn, b); err != nil {
			return dirent.DirEnt{}, addr.Addr{}, err
		}
		if de, slot, ok := dirent.Lookup(b, name); ok {
			return de, addr.MkSlotAddr(bn, slot), nil
		}
	}
	return dirent.DirEnt{}, addr.Addr{}, common.ErrNotFound
}

// Walk resolves p.
//
// A missing component fails with ErrNotFound and a component that must be
// searched but is not a directory fails with ErrNotDir; a device failure at
// any step fails with ErrIO.
func (w *Walker) Walk(p string, sel Selector) (*Loc, error) {
	loc, err := w.WalkNames(Split(p), sel)
	if err != nil {
		return nil, fmt.Errorf("walking `%s`: %w", p, err)
	}
	return loc, nil
}

func (w *Walker) WalkNames(names []dirent.Name, sel Selector) (*Loc, error) {
	bp := w.getBlock()
	defer w.putBlock(bp)
	b := *bp

	cur := Root
	parent := common.NULLINUM
	var where addr.Addr
	for i, name := range names {
		dir, err := w.ReadInode(cur.Inum)
		if err != nil {
			return nil, err
		}
		if !dir.IsDir() {
			return nil, fmt.Errorf("`%s` (component %d): %w", cur.Name, i, common.ErrNotDir)
		}
		de, a, err := w.scan(dir, name, b)
		if err != nil {
			return nil, fmt.Errorf("`%s` (component %d): %w", name, i+1, err)
		}
		util.DPrintf(3, "walk: %s -> %d at %d/%d\n", name, de.Inum, a.Blkno, a.Slot())
		parent, cur, where = cur.Inum, de, a
	}

	loc := &Loc{Ent: cur}
	if len(names) == 0 {
		return loc, nil
	}
	switch sel {
	case SelBlock:
		loc.Block = dirent.DecodeBlock(b)
		fallthrough
	case SelParent:
		loc.Parent = parent
		loc.Addr = where
	}
	return loc, nil
}

// ReadDir returns the valid entries of dir in pointer order then slot
// order, skipping zero pointers.
func (w *Walker) ReadDir(dir *inode.Inode) ([]dirent.DirEnt, error) {
	bp := w.getBlock()
	defer w.putBlock(bp)
	b := *bp
	ents := make([]dirent.DirEnt, 0)
	for _, p := range dir.Ptrs {
		if p == 0 {
			continue
		}
		if err := w.readTo(common.Bnum(p), b); err != nil {
			return nil, err
		}
		ents = append(ents, dirent.Valid(b)...)
	}
	return ents, nil
}
