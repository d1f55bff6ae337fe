package disk

import (
	"fmt"

	gdisk "github.com/tchajed/goose/machine/disk"
)

var _ Disk = (*gooseDisk)(nil)

// gooseDisk adapts a goose disk, which panics on bad addresses and failed
// transfers, to the error-returning Disk interface.
type gooseDisk struct {
	d gdisk.Disk
}

// FromGoose wraps d so that its panics surface as errors.
func FromGoose(d gdisk.Disk) Disk {
	return &gooseDisk{d: d}
}

// NewMemDisk returns a zeroed in-memory disk of numBlocks blocks.
func NewMemDisk(numBlocks uint64) Disk {
	return FromGoose(gdisk.NewMemDisk(numBlocks))
}

func recovered(op string, a uint64, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s block %d: %v", op, a, r)
	}
}

func (g *gooseDisk) Read(a uint64) (blk Block, err error) {
	defer recovered("reading", a, &err)
	return g.d.Read(a), nil
}

func (g *gooseDisk) ReadTo(a uint64, b Block) error {
	if uint64(len(b)) != BlockSize {
		return fmt.Errorf("reading block %d: buffer is %d bytes, not block-sized", a, len(b))
	}
	blk, err := g.Read(a)
	if err != nil {
		return err
	}
	copy(b, blk)
	return nil
}

func (g *gooseDisk) Write(a uint64, v Block) (err error) {
	if uint64(len(v)) != BlockSize {
		return fmt.Errorf("writing block %d: v is not block-sized (%d bytes)", a, len(v))
	}
	defer recovered("writing", a, &err)
	g.d.Write(a, v)
	return nil
}

func (g *gooseDisk) Size() (uint64, error) {
	return g.d.Size(), nil
}

func (g *gooseDisk) Barrier() (err error) {
	defer recovered("barrier at", 0, &err)
	g.d.Barrier()
	return nil
}

func (g *gooseDisk) Close() (err error) {
	defer recovered("closing at", 0, &err)
	g.d.Close()
	return nil
}
