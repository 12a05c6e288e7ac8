// Package bcache is a block-buffer cache: a fixed pool of block-sized
// buffers that mediates every read and write of a block device on behalf of
// a filesystem. It caches blocks to avoid repeated transfers, gives each
// block a single point of mutual exclusion, and recycles buffers under
// pressure without deadlock.
//
// Design
//
//   - Buffers: Options.Buffers slots are allocated once by New and never
//     freed. A slot caching nothing has no identity; recycling rebinds a free
//     slot (no references) to a new (device, block) pair.
//
//   - Shards: block b belongs to shard b % Options.Shards. Each shard has a
//     mutex, an index of the blocks it caches, and an intrusive list of its
//     slots from most to least recently released. All slots start in shard 0.
//
//   - Fast path: Get takes only the block's shard lock. A cached block is a
//     hit; otherwise the free slot nearest the LRU end of that shard is
//     rebound in place.
//
//   - Slow path: when the shard has no free slot, Get takes the global
//     eviction lock and then the shard lock, re-checks the shard, and then
//     scans the other shards in index order for a free slot, moving the first
//     one found to the head of the block's shard. Only the slow path ever
//     holds more than one lock, and the global lock serializes it, so lock
//     cycles are impossible.
//
//   - Exclusive use: each slot has a sleeping lock taken after all cache
//     locks are dropped. Device transfers run under it alone, so a slow
//     device never stalls unrelated cache traffic. The token returned by Get
//     or Read is the proof of ownership that Write and Release check.
//
//   - Exhaustion: if no slot is free anywhere, Get panics with ErrNoBuffers,
//     or waits for a release when Options.WaitForBuffers is set.
//
// Basic usage
//
//	disks := device.NewTable()
//	disks.Register(1, device.NewMem(1024))
//	c := bcache.New(bcache.Options{Device: disks})
//
//	b, err := c.Read(1, 42)
//	if err != nil {
//	    return err
//	}
//	b.Data()[0] = 0xff
//	if err := c.Write(b); err != nil {
//	    return err
//	}
//	c.Release(b)
//
// Keeping a block resident across holds
//
//	b, _ := c.Read(1, 7)
//	c.Pin(b)     // b's buffer cannot be recycled ...
//	c.Release(b)
//	// ...
//	c.Unpin(b)   // ... until the pin is dropped
//
// Misuse (Write or Release without holding, Unpin without a reference) is
// treated as a fatal bug: the cache logs it and panics with ErrNotHeld or
// ErrRefcount.
package bcache
