package host

import (
	"syscall"

	"bazil.org/fuse"

	"github.com/mit-pdos/blockfs/common"
)

var errnos = map[common.Error]syscall.Errno{
	common.ErrNotFound: syscall.ENOENT,
	common.ErrNotDir:   syscall.ENOTDIR,
	common.ErrIsDir:    syscall.EISDIR,
	common.ErrExist:    syscall.EEXIST,
	common.ErrInval:    syscall.EINVAL,
	common.ErrIO:       syscall.EIO,
}

// Errno maps a filesystem error to the errno the kernel sees. nil stays
// nil.
func Errno(err error) error {
	if err == nil {
		return nil
	}
	return fuse.Errno(errnos[common.Kind(err)])
}
