package device

import (
	"io"
	"sync"

	"golang.org/x/xerrors"
)

// Table maps device ids to disks and performs transfers on behalf of the
// buffer cache. The zero value is empty and ready to use.
type Table struct {
	mu    sync.RWMutex
	disks map[uint32]Disk
}

// NewTable returns an empty table.
func NewTable() *Table { return &Table{} }

// Register attaches d as device dev, replacing any previous disk.
func (t *Table) Register(dev uint32, d Disk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disks == nil {
		t.disks = make(map[uint32]Disk)
	}
	t.disks[dev] = d
}

// Lookup returns the disk registered as dev.
func (t *Table) Lookup(dev uint32) (Disk, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.disks[dev]
	return d, ok
}

// Transfer reads (write == false) or writes one block of device dev.
func (t *Table) Transfer(dev, blockno uint32, data []byte, write bool) error {
	d, ok := t.Lookup(dev)
	if !ok {
		return xerrors.Errorf("dev %d: %w", dev, ErrNoDevice)
	}
	if write {
		return d.WriteBlock(blockno, data)
	}
	return d.ReadBlock(blockno, data)
}

// Close closes every registered disk that implements io.Closer and
// returns the first error.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var first error
	for dev, d := range t.disks {
		if c, ok := d.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = xerrors.Errorf("dev %d: %w", dev, err)
			}
		}
	}
	t.disks = nil
	return first
}
