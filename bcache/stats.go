package bcache

// ShardStats is a point-in-time view of one shard.
type ShardStats struct {
	Buffers int // slots linked into the shard
	Free    int // of those, slots with no references
	// Pinned counts referenced slots whose sleep lock is free. It is exact
	// when no Get is in flight; otherwise a caller that already took its
	// reference but has not acquired the lock yet is counted too.
	Pinned int

	Hits     uint64 // Get found the block cached
	Misses   uint64 // Get had to rebind a slot
	Recycles uint64 // misses served by a free slot already in this shard
	Steals   uint64 // slots moved into this shard from other shards
}

// Stats aggregates ShardStats over the whole cache.
type Stats struct {
	Shards []ShardStats

	Buffers  int
	Free     int
	Pinned   int
	Hits     uint64
	Misses   uint64
	Recycles uint64
	Steals   uint64
}

// Stats walks every shard under its own lock, one shard at a time, so the
// snapshot is per-shard consistent but not a global atomic view.
func (c *Cache) Stats() Stats {
	st := Stats{Shards: make([]ShardStats, len(c.shards))}
	for i, sh := range c.shards {
		ss := sh.stats()
		st.Shards[i] = ss
		st.Buffers += ss.Buffers
		st.Free += ss.Free
		st.Pinned += ss.Pinned
		st.Hits += ss.Hits
		st.Misses += ss.Misses
		st.Recycles += ss.Recycles
		st.Steals += ss.Steals
	}
	return st
}

func (sh *shard) stats() ShardStats {
	sh.mu.Lock()
	ss := ShardStats{Buffers: sh.len}
	for i := sh.head; i != none; i = sh.slots[i].next {
		s := &sh.slots[i]
		switch {
		case s.refcnt == 0:
			ss.Free++
		case !s.lock.Held():
			ss.Pinned++
		}
	}
	sh.mu.Unlock()

	ss.Hits = sh.hits.Load()
	ss.Misses = sh.misses.Load()
	ss.Recycles = sh.recycles.Load()
	ss.Steals = sh.steals.Load()
	return ss
}
