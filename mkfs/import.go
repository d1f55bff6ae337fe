package mkfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mit-pdos/blockfs/util"
)

// Import copies the tree under hostDir into the image root. Directories
// and regular files keep their permission bits; uid and gid come from
// owner. Anything else (symlinks, devices) is skipped.
func (b *Builder) Import(hostDir string, owner Meta) error {
	return filepath.WalkDir(hostDir, func(hp string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(hostDir, hp)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		m := owner
		m.Perm = uint32(info.Mode().Perm())
		p := "/" + filepath.ToSlash(rel)
		switch {
		case de.IsDir():
			_, err = b.Mkdir(p, m)
		case info.Mode().IsRegular():
			var data []byte
			data, err = os.ReadFile(hp)
			if err == nil {
				_, err = b.WriteFile(p, data, m)
			}
		default:
			util.DPrintf(1, "mkfs: skipping %s (%v)\n", hp, info.Mode().Type())
			return nil
		}
		if err != nil {
			return fmt.Errorf("importing %s: %w", hp, err)
		}
		return nil
	})
}
