package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/blockfs/common"
)

func TestSlotAddr(t *testing.T) {
	assert := assert.New(t)
	a := MkSlotAddr(17, 5)
	assert.Equal(common.Bnum(17), a.Blkno)
	assert.Equal(uint64(5*32*8), a.Off)
	assert.Equal(uint64(5), a.Slot())
	assert.Equal(uint64(0), MkSlotAddr(3, 0).Slot())
	assert.Equal(common.DIRENTBLK-1, MkSlotAddr(3, common.DIRENTBLK-1).Slot())
}
