// Package host serves a filesys.Session over FUSE. Nodes are named by
// path and every request becomes one Session call.
package host

import (
	"context"
	"os"
	"path"
	"syscall"
	"time"

	"bazil.org/fuse"
	bfs "bazil.org/fuse/fs"

	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/filesys"
	"github.com/mit-pdos/blockfs/inode"
	"github.com/mit-pdos/blockfs/util"
)

type FS struct {
	s *filesys.Session
}

var (
	_ bfs.FS         = (*FS)(nil)
	_ bfs.FSStatfser = (*FS)(nil)
)

func New(s *filesys.Session) *FS {
	return &FS{s: s}
}

func (f *FS) Root() (bfs.Node, error) {
	return &Node{fs: f, path: "/"}, nil
}

func (f *FS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	st := f.s.Statfs()
	resp.Bsize = uint32(st.Bsize)
	resp.Frsize = uint32(st.Bsize)
	resp.Blocks = st.Blocks
	resp.Bfree = st.Bfree
	resp.Bavail = st.Bavail
	resp.Namelen = uint32(st.Namemax)
	return nil
}

type Node struct {
	fs   *FS
	path string
}

var (
	_ bfs.Node               = (*Node)(nil)
	_ bfs.NodeStringLookuper = (*Node)(nil)
	_ bfs.HandleReadDirAller = (*Node)(nil)
	_ bfs.HandleReader       = (*Node)(nil)
	_ bfs.NodeRenamer        = (*Node)(nil)
	_ bfs.NodeSetattrer      = (*Node)(nil)
)

// FileMode converts an on-disk mode to the os representation.
func FileMode(mode uint32) os.FileMode {
	m := os.FileMode(mode & 0777)
	if mode&inode.S_IFMT == inode.S_IFDIR {
		m |= os.ModeDir
	}
	if mode&syscall.S_ISUID != 0 {
		m |= os.ModeSetuid
	}
	if mode&syscall.S_ISGID != 0 {
		m |= os.ModeSetgid
	}
	if mode&syscall.S_ISVTX != 0 {
		m |= os.ModeSticky
	}
	return m
}

// UnixPerm converts the permission bits of m back to the on-disk form.
func UnixPerm(m os.FileMode) uint32 {
	mode := uint32(m.Perm())
	if m&os.ModeSetuid != 0 {
		mode |= syscall.S_ISUID
	}
	if m&os.ModeSetgid != 0 {
		mode |= syscall.S_ISGID
	}
	if m&os.ModeSticky != 0 {
		mode |= syscall.S_ISVTX
	}
	return mode
}

func fillAttr(a inode.Attr, out *fuse.Attr) {
	out.Inode = uint64(a.Inum)
	out.Size = a.Size
	out.Blocks = a.Blocks
	out.Atime = a.Atime
	out.Mtime = a.Mtime
	out.Ctime = a.Ctime
	out.Mode = FileMode(a.Mode)
	out.Nlink = a.Nlink
	out.Uid = a.Uid
	out.Gid = a.Gid
	out.BlockSize = uint32(disk.BlockSize)
}

func (n *Node) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := n.fs.s.GetAttr(n.path)
	if err != nil {
		return Errno(err)
	}
	fillAttr(attr, a)
	return nil
}

func (n *Node) Lookup(ctx context.Context, name string) (bfs.Node, error) {
	p := path.Join(n.path, name)
	if _, err := n.fs.s.GetAttr(p); err != nil {
		return nil, Errno(err)
	}
	return &Node{fs: n.fs, path: p}, nil
}

func (n *Node) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	ents, err := n.fs.s.ReadDir(n.path)
	if err != nil {
		return nil, Errno(err)
	}
	out := make([]fuse.Dirent, 0, len(ents))
	for _, de := range ents {
		out = append(out, fuse.Dirent{Inode: uint64(de.Inum), Name: string(de.Name)})
	}
	return out, nil
}

func (n *Node) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	if req.Offset < 0 || req.Size < 0 {
		return fuse.Errno(syscall.EINVAL)
	}
	data, err := n.fs.s.Read(n.path, uint64(req.Offset), uint64(req.Size))
	if err != nil {
		return Errno(err)
	}
	resp.Data = data
	return nil
}

func (n *Node) Rename(ctx context.Context, req *fuse.RenameRequest, newDir bfs.Node) error {
	nd, ok := newDir.(*Node)
	if !ok {
		return fuse.Errno(syscall.EXDEV)
	}
	src := path.Join(n.path, req.OldName)
	dst := path.Join(nd.path, req.NewName)
	util.DPrintf(1, "host: rename %s %s\n", src, dst)
	return Errno(n.fs.s.Rename(src, dst))
}

// Setattr handles mode and mtime changes. Size and owner changes fail with
// EPERM; atime is not stored and is ignored.
func (n *Node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() || req.Valid.Uid() || req.Valid.Gid() {
		return fuse.Errno(syscall.EPERM)
	}
	if req.Valid.Mode() {
		if err := n.fs.s.Chmod(n.path, UnixPerm(req.Mode)); err != nil {
			return Errno(err)
		}
	}
	if req.Valid.Mtime() {
		mtime := req.Mtime
		if req.Valid.MtimeNow() {
			mtime = time.Now()
		}
		if err := n.fs.s.Utime(n.path, mtime); err != nil {
			return Errno(err)
		}
	}
	return n.Attr(ctx, &resp.Attr)
}
