package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/blockfs/config"
	"github.com/mit-pdos/blockfs/disk"
	"github.com/mit-pdos/blockfs/filesys"
	"github.com/mit-pdos/blockfs/host"
	"github.com/mit-pdos/blockfs/inode"
	"github.com/mit-pdos/blockfs/mkfs"
	"github.com/mit-pdos/blockfs/util"
)

var cfg *config.Config

func main() {
	app := &cli.App{
		Name:  "blockfs",
		Usage: "build, inspect and mount blockfs images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "the image file (overrides BLOCKFS_IMAGE)",
			},
			&cli.Uint64Flag{
				Name:  "debug",
				Usage: "debug level: 1 operations, 3 walk steps, 5 block I/O",
			},
		},
		Before: func(ctx *cli.Context) error {
			c, err := config.Load()
			if err != nil {
				return err
			}
			if ctx.IsSet("image") {
				c.Image = ctx.String("image")
			}
			if ctx.IsSet("debug") {
				c.Debug = ctx.Uint64("debug")
			}
			util.SetDebug(c.Debug)
			cfg = c
			return nil
		},
		Commands: []*cli.Command{{
			Name:      "mkfs",
			Usage:     "format a new image",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:  "size",
					Usage: "size in 4096-byte blocks",
					Value: 1024,
				},
				&cli.StringFlag{
					Name:  "from",
					Usage: "a host directory to copy into the image",
				},
			},
			Action: func(ctx *cli.Context) error {
				if err := cfg.Validate(); err != nil {
					return err
				}
				return makeImage(cfg.Image, ctx.Uint64("size"), ctx.String("from"))
			},
		}, {
			Name:      "mount",
			Usage:     "serve the image over FUSE until unmounted or interrupted",
			ArgsUsage: "[MOUNTPOINT]",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "read-only", Usage: "mount read-only"},
			},
			Action: func(ctx *cli.Context) error {
				if ctx.Args().Present() {
					cfg.Mountpoint = ctx.Args().First()
				}
				if ctx.IsSet("read-only") {
					cfg.ReadOnly = ctx.Bool("read-only")
				}
				if err := cfg.ValidateMount(); err != nil {
					return err
				}
				return withSession(cfg.ReadOnly, func(s *filesys.Session) error {
					sctx, stop := signal.NotifyContext(
						context.Background(),
						os.Interrupt,
						syscall.SIGTERM,
					)
					defer stop()
					return host.Serve(sctx, s, cfg.Mountpoint, host.MountOptions{
						FSName:   cfg.FSName,
						ReadOnly: cfg.ReadOnly,
					})
				})
			},
		}, {
			Name:      "ls",
			Usage:     "list a directory",
			ArgsUsage: "PATH",
			Action: readOnly(func(s *filesys.Session, ctx *cli.Context) error {
				ents, err := s.ReadDir(pathArg(ctx, 0))
				if err != nil {
					return err
				}
				for _, de := range ents {
					fmt.Printf("%8d %s\n", de.Inum, de.Name)
				}
				return nil
			}),
		}, {
			Name:      "stat",
			Usage:     "print the attributes of a path",
			ArgsUsage: "PATH",
			Action: readOnly(func(s *filesys.Session, ctx *cli.Context) error {
				a, err := s.GetAttr(pathArg(ctx, 0))
				if err != nil {
					return err
				}
				printAttr(a)
				return nil
			}),
		}, {
			Name:      "cat",
			Usage:     "write a file to stdout",
			ArgsUsage: "PATH",
			Action: readOnly(func(s *filesys.Session, ctx *cli.Context) error {
				p := pathArg(ctx, 0)
				a, err := s.GetAttr(p)
				if err != nil {
					return err
				}
				data, err := s.Read(p, 0, a.Size)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}),
		}, {
			Name:  "statfs",
			Usage: "print filesystem statistics",
			Action: readOnly(func(s *filesys.Session, ctx *cli.Context) error {
				st := s.Statfs()
				fmt.Printf("block size: %d\nblocks:     %d\nfree:       %d\nname max:   %d\n",
					st.Bsize, st.Blocks, st.Bfree, st.Namemax)
				return nil
			}),
		}, {
			Name:      "mv",
			Usage:     "rename an entry within its directory",
			ArgsUsage: "SRC DST",
			Action: readWrite(func(s *filesys.Session, ctx *cli.Context) error {
				if ctx.NArg() != 2 {
					return cli.Exit("usage: blockfs mv SRC DST", 2)
				}
				return s.Rename(ctx.Args().Get(0), ctx.Args().Get(1))
			}),
		}, {
			Name:      "chmod",
			Usage:     "set permission bits",
			ArgsUsage: "MODE PATH",
			Action: readWrite(func(s *filesys.Session, ctx *cli.Context) error {
				if ctx.NArg() != 2 {
					return cli.Exit("usage: blockfs chmod MODE PATH", 2)
				}
				mode, err := strconv.ParseUint(ctx.Args().Get(0), 8, 32)
				if err != nil {
					return fmt.Errorf("parsing mode `%s`: %w", ctx.Args().Get(0), err)
				}
				return s.Chmod(ctx.Args().Get(1), uint32(mode))
			}),
		}, {
			Name:      "touch",
			Usage:     "set the modification time",
			ArgsUsage: "PATH",
			Flags: []cli.Flag{
				&cli.TimestampFlag{
					Name:   "time",
					Usage:  "the modification time. Defaults to now.",
					Layout: time.RFC3339,
				},
			},
			Action: readWrite(func(s *filesys.Session, ctx *cli.Context) error {
				t := ctx.Timestamp("time")
				if t == nil {
					now := time.Now()
					t = &now
				}
				return s.Utime(pathArg(ctx, 0), *t)
			}),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func pathArg(ctx *cli.Context, i int) string {
	if p := ctx.Args().Get(i); p != "" {
		return p
	}
	return "/"
}

func makeImage(path string, size uint64, from string) error {
	d, err := disk.NewFileDisk(path, size)
	if err != nil {
		return fmt.Errorf("creating image: %w", err)
	}
	defer d.Close()
	b, err := mkfs.Format(d, size)
	if err != nil {
		return err
	}
	if from != "" {
		if err := b.Import(from, mkfs.Meta{
			Uid: uint16(os.Getuid()),
			Gid: uint16(os.Getgid()),
		}); err != nil {
			return err
		}
	}
	if err := b.Flush(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"image":  path,
		"blocks": size,
		"used":   b.Used(),
	}).Info("formatted")
	return nil
}

func withSession(ro bool, f func(*filesys.Session) error) error {
	d, err := disk.OpenFileDisk(cfg.Image, ro)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	s, err := filesys.Mount(d)
	if err != nil {
		d.Close()
		return fmt.Errorf("mounting `%s`: %w", cfg.Image, err)
	}
	if err := f(s); err != nil {
		s.Unmount()
		return err
	}
	return s.Unmount()
}

func readOnly(f func(*filesys.Session, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return withSession(true, func(s *filesys.Session) error { return f(s, ctx) })
	}
}

func readWrite(f func(*filesys.Session, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.ReadOnly {
			return cli.Exit("image is configured read-only", 1)
		}
		return withSession(false, func(s *filesys.Session) error { return f(s, ctx) })
	}
}

func printAttr(a inode.Attr) {
	kind := "file"
	if a.IsDir() {
		kind = "directory"
	}
	fmt.Printf("inode:  %d (%s)\n", a.Inum, kind)
	fmt.Printf("mode:   %s (%#o)\n", host.FileMode(a.Mode), a.Mode)
	fmt.Printf("owner:  %d:%d\n", a.Uid, a.Gid)
	fmt.Printf("size:   %d (%d blocks)\n", a.Size, a.Blocks)
	fmt.Printf("mtime:  %s\n", a.Mtime.Format(time.RFC3339))
}
