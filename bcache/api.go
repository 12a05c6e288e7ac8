package bcache

import "context"

// BlockCache is the contract the buffer cache offers to a filesystem.
// All methods are safe for concurrent use by multiple goroutines.
//
// Typical use:
//
//	b, err := c.Read(dev, blockno)
//	if err != nil { ... }
//	copy(b.Data()[off:], update)
//	err = c.Write(b)
//	c.Release(b)
type BlockCache interface {
	// Get returns an exclusively held buffer for (dev, blockno) without
	// reading it.
	Get(dev, blockno uint32) *Buf

	// Read returns an exclusively held buffer with valid contents.
	Read(dev, blockno uint32) (*Buf, error)

	// GetContext and ReadContext stop waiting for the buffer's holder when
	// ctx is done.
	GetContext(ctx context.Context, dev, blockno uint32) (*Buf, error)
	ReadContext(ctx context.Context, dev, blockno uint32) (*Buf, error)

	// Write flushes a held buffer to the device.
	Write(b *Buf) error

	// Release ends the caller's hold on b.
	Release(b *Buf)

	// Pin and Unpin keep a buffer resident across holds.
	Pin(b *Buf)
	Unpin(b *Buf)

	// Stats returns a snapshot of per-shard counters.
	Stats() Stats
}

var _ BlockCache = (*Cache)(nil)
