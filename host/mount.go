package host

import (
	"context"

	"bazil.org/fuse"
	bfs "bazil.org/fuse/fs"
	"github.com/sirupsen/logrus"

	"github.com/mit-pdos/blockfs/filesys"
)

type MountOptions struct {
	FSName   string
	ReadOnly bool
}

// Serve mounts s at mountpoint and serves requests until the filesystem is
// unmounted or ctx is cancelled, which unmounts it.
func Serve(ctx context.Context, s *filesys.Session, mountpoint string, opts MountOptions) error {
	mopts := []fuse.MountOption{
		fuse.FSName(opts.FSName),
		fuse.Subtype("blockfs"),
	}
	if opts.ReadOnly {
		mopts = append(mopts, fuse.ReadOnly())
	}
	c, err := fuse.Mount(mountpoint, mopts...)
	if err != nil {
		return err
	}
	defer c.Close()

	log := logrus.WithFields(logrus.Fields{
		"session":    s.ID.String(),
		"mountpoint": mountpoint,
	})
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			log.Info("unmounting")
			if err := fuse.Unmount(mountpoint); err != nil {
				log.WithError(err).Warn("unmount failed")
			}
		case <-done:
		}
	}()

	log.Info("serving")
	return bfs.Serve(c, New(s))
}
