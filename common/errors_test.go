package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(Error(""), Kind(nil))
	assert.Equal(ErrNotFound, Kind(ErrNotFound))
	assert.Equal(ErrNotDir, Kind(fmt.Errorf("walking `/a/b`: %w", ErrNotDir)))
	assert.Equal(ErrExist, Kind(fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrExist))))
	assert.Equal(ErrIO, Kind(errors.New("pread: bad file descriptor")), "device errors")
}

func TestLayoutConstants(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(128), DIRENTBLK)
	assert.Equal(uint64(1019), NDIRECT)
	assert.Equal(uint64(4096), INODEHDRSZ+4*NDIRECT, "inode fills a block")
	assert.Equal(uint64(28), NAMESZ)
}
