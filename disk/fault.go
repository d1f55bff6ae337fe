package disk

import (
	"fmt"
	"sync"
)

// FaultDisk wraps a Disk and fails transfers of chosen blocks. It also
// counts transfers so callers can check how much I/O an operation did.
type FaultDisk struct {
	Disk

	mu        *sync.Mutex
	badReads  map[uint64]bool
	badWrites map[uint64]bool
	reads     uint64
	writes    uint64
}

var _ Disk = (*FaultDisk)(nil)

func NewFaultDisk(d Disk) *FaultDisk {
	return &FaultDisk{
		Disk:      d,
		mu:        new(sync.Mutex),
		badReads:  make(map[uint64]bool),
		badWrites: make(map[uint64]bool),
	}
}

func (f *FaultDisk) FailRead(a uint64) {
	f.mu.Lock()
	f.badReads[a] = true
	f.mu.Unlock()
}

func (f *FaultDisk) FailWrite(a uint64) {
	f.mu.Lock()
	f.badWrites[a] = true
	f.mu.Unlock()
}

// Heal clears every injected failure.
func (f *FaultDisk) Heal() {
	f.mu.Lock()
	f.badReads = make(map[uint64]bool)
	f.badWrites = make(map[uint64]bool)
	f.mu.Unlock()
}

// Counts returns the number of reads and writes attempted so far.
func (f *FaultDisk) Counts() (uint64, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.writes
}

func (f *FaultDisk) checkRead(a uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.badReads[a] {
		return fmt.Errorf("injected read failure at block %d", a)
	}
	return nil
}

func (f *FaultDisk) Read(a uint64) (Block, error) {
	if err := f.checkRead(a); err != nil {
		return nil, err
	}
	return f.Disk.Read(a)
}

func (f *FaultDisk) ReadTo(a uint64, b Block) error {
	if err := f.checkRead(a); err != nil {
		return err
	}
	return f.Disk.ReadTo(a, b)
}

func (f *FaultDisk) Write(a uint64, v Block) error {
	f.mu.Lock()
	f.writes++
	bad := f.badWrites[a]
	f.mu.Unlock()
	if bad {
		return fmt.Errorf("injected write failure at block %d", a)
	}
	return f.Disk.Write(a, v)
}
