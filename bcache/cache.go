package bcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/bcache/device"
	"github.com/IvanBrykalov/bcache/internal/util"
	"github.com/IvanBrykalov/bcache/policy/lru"
)

// Cache is a fixed pool of block buffers split into shards.
// All methods are safe for concurrent use by multiple goroutines.
type Cache struct {
	shards []*shard
	slots  []slot

	// evictMu serializes the slow path and is always taken before any shard lock.
	evictMu sync.Mutex
	freed   *sync.Cond // on evictMu; signalled when a refcnt drops to zero
	waiters atomic.Int64

	opt     Options
	dev     Device
	metrics Metrics
	log     *slog.Logger
}

// New allocates every buffer and places all of them in shard 0.
// Other shards fill up as the slow path redistributes buffers.
// Defaults:
//   - Buffers == 0 -> DefaultBuffers
//   - Shards == 0  -> DefaultShards
//   - nil Policy   -> LRU
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> discard
func New(opt Options) *Cache {
	if opt.Device == nil {
		panic("bcache: Device must be set")
	}
	if opt.Buffers < 0 || opt.Shards < 0 {
		panic("bcache: Buffers and Shards must be >= 0")
	}
	if opt.Buffers == 0 {
		opt.Buffers = DefaultBuffers
	}
	if opt.Shards == 0 {
		opt.Shards = DefaultShards
	}
	if opt.Policy == nil {
		opt.Policy = lru.New()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	c := &Cache{
		slots:   make([]slot, opt.Buffers),
		shards:  make([]*shard, opt.Shards),
		opt:     opt,
		dev:     opt.Device,
		metrics: opt.Metrics,
		log:     opt.Logger,
	}
	c.freed = sync.NewCond(&c.evictMu)
	for i := range c.shards {
		c.shards[i] = newShard(i, c.slots, opt.Policy)
	}

	arena := make([]byte, opt.Buffers*device.BlockSize)
	home := c.shards[0]
	for i := range c.slots {
		s := &c.slots[i]
		s.idx = int32(i)
		s.prev, s.next = none, none
		s.data = arena[i*device.BlockSize : (i+1)*device.BlockSize : (i+1)*device.BlockSize]
		s.lock.Init("buffer")
		home.pol.OnInsert(s)
	}
	return c
}

// Get returns the buffer for block blockno of device dev, exclusively held
// by the returned token. The payload is not read; see Read.
//
// Fast path: under the block's shard lock, reuse the cached buffer or rebind
// the least recently released free buffer of that shard. Slow path: steal a
// free buffer from another shard under the global eviction lock.
// If no buffer is free anywhere Get panics with ErrNoBuffers, unless
// Options.WaitForBuffers is set.
func (c *Cache) Get(dev, blockno uint32) *Buf {
	b := c.bind(dev, blockno)
	// No cache lock is held here; this may sleep behind another holder.
	b.s.lock.Acquire(b)
	return b
}

// GetContext is Get that gives up waiting for the buffer's current holder
// when ctx is done. The reference taken for the caller is dropped again and
// ctx.Err() is returned. Waiting for a free buffer under
// Options.WaitForBuffers is not interrupted by ctx.
func (c *Cache) GetContext(ctx context.Context, dev, blockno uint32) (*Buf, error) {
	b := c.bind(dev, blockno)
	if err := b.s.lock.AcquireContext(ctx, b); err != nil {
		c.unref(b.s)
		return nil, err
	}
	return b, nil
}

// Read returns a held buffer with the contents of the block, reading it from
// the device if the cache does not have it. On a device error the buffer
// is released and the error returned; the buffer stays invalid.
func (c *Cache) Read(dev, blockno uint32) (*Buf, error) {
	return c.fill(c.Get(dev, blockno))
}

// ReadContext is Read on top of GetContext.
func (c *Cache) ReadContext(ctx context.Context, dev, blockno uint32) (*Buf, error) {
	b, err := c.GetContext(ctx, dev, blockno)
	if err != nil {
		return nil, err
	}
	return c.fill(b)
}

// Write flushes the buffer's payload to the device. The caller must hold b.
// Validity and reference count are unchanged.
func (c *Cache) Write(b *Buf) error {
	if !b.s.lock.HeldBy(b) {
		c.fatal(ErrNotHeld, "op", "write", "dev", b.key.dev, "blockno", b.key.blockno)
	}
	if err := c.transfer(b.s, true); err != nil {
		return fmt.Errorf("bcache: write dev %d block %d: %w", b.key.dev, b.key.blockno, err)
	}
	return nil
}

// Release gives up the caller's hold on b. When the last reference goes,
// the buffer moves to the MRU end of its shard. The token is dead afterwards.
func (c *Cache) Release(b *Buf) {
	if err := b.s.lock.Release(b); err != nil {
		c.fatal(ErrNotHeld, "op", "release", "dev", b.key.dev, "blockno", b.key.blockno)
	}
	c.unref(b.s)
}

// Pin takes an extra reference on b's buffer so it cannot be recycled,
// independent of the exclusive hold. b must be held or already pinned;
// pinning through a token whose buffer has since been recycled is fatal.
func (c *Cache) Pin(b *Buf) {
	s := b.s
	sh := c.shardFor(b.key.blockno)
	sh.mu.Lock()
	if !b.referencedLocked() {
		sh.mu.Unlock()
		c.fatal(ErrNotHeld, "op", "pin", "dev", b.key.dev, "blockno", b.key.blockno)
	}
	s.refcnt++
	sh.mu.Unlock()
}

// Unpin drops a reference taken by Pin. List position is unchanged.
func (c *Cache) Unpin(b *Buf) {
	s := b.s
	sh := c.shardFor(b.key.blockno)
	sh.mu.Lock()
	if !b.referencedLocked() {
		sh.mu.Unlock()
		c.fatal(ErrRefcount, "op", "unpin", "dev", b.key.dev, "blockno", b.key.blockno)
	}
	s.refcnt--
	freed := s.refcnt == 0
	sh.mu.Unlock()

	if freed {
		c.wakeWaiters()
	}
}

// ---- helpers ----

// bind finds or recycles the slot for (dev, blockno), takes a reference on
// it and returns an unheld token for it.
func (c *Cache) bind(dev, blockno uint32) *Buf {
	key := blockKey{dev: dev, blockno: blockno}
	sh := c.shardFor(blockno)

	sh.mu.Lock()
	s, hit := sh.getLocked(key)
	sh.mu.Unlock()

	reason := RecycleLocal
	if s == nil {
		s, hit, reason = c.evict(sh, key)
	}

	if hit {
		sh.hits.Add(1)
		c.metrics.Hit()
	} else {
		sh.misses.Add(1)
		c.metrics.Miss()
		c.metrics.Recycle(reason)
	}
	return &Buf{s: s, key: key}
}

// fill reads b's block from the device unless it is already valid.
// On error b is released.
func (c *Cache) fill(b *Buf) (*Buf, error) {
	if !b.s.valid {
		if err := c.transfer(b.s, false); err != nil {
			c.Release(b)
			return nil, fmt.Errorf("bcache: read dev %d block %d: %w", b.key.dev, b.key.blockno, err)
		}
		b.s.valid = true
	}
	return b, nil
}

// unref drops one reference on a slot whose identity is pinned by that
// reference, and wakes slow-path waiters when the slot became free.
func (c *Cache) unref(s *slot) {
	sh := c.shardFor(s.blockno)
	sh.mu.Lock()
	freed := sh.releaseLocked(s)
	sh.mu.Unlock()

	if freed {
		c.wakeWaiters()
	}
}

// shardFor picks the shard of a block: blockno modulo the shard count.
func (c *Cache) shardFor(blockno uint32) *shard {
	return c.shards[util.ShardIndex(uint64(blockno), len(c.shards))]
}

// transfer runs the device collaborator. Only called with s's sleep lock held.
func (c *Cache) transfer(s *slot, write bool) error {
	err := c.dev.Transfer(s.dev, s.blockno, s.data, write)
	c.metrics.Transfer(write, err)
	return err
}
