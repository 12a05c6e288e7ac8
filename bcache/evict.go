package bcache

// evictGuard is the only code path that holds more than one lock of the
// cache. Lock order is fixed: the global eviction lock, then the target
// shard, then other shards one at a time in ascending index order.
// A guard can only be obtained from lockForEviction.
type evictGuard struct {
	c      *Cache
	target *shard
}

// lockForEviction takes the global eviction lock and then the target shard lock.
func (c *Cache) lockForEviction(target *shard) *evictGuard {
	c.evictMu.Lock()
	if c.opt.WaitForBuffers {
		// Count ourselves before scanning so a release that races with the
		// scan always finds a waiter to wake.
		c.waiters.Add(1)
	}
	target.mu.Lock()
	return &evictGuard{c: c, target: target}
}

// unlock releases the target shard and then the global lock.
func (g *evictGuard) unlock() {
	g.target.mu.Unlock()
	if g.c.opt.WaitForBuffers {
		g.c.waiters.Add(-1)
	}
	g.c.evictMu.Unlock()
}

// steal scans every other shard from its LRU end for a free slot, moves
// the first one found to the head of the target shard bound to key, and
// returns it with the index of the shard it came from.
func (g *evictGuard) steal(key blockKey) (*slot, int) {
	for _, sh := range g.c.shards {
		if sh == g.target {
			continue
		}
		sh.mu.Lock()
		if v := sh.pol.Victim(); v != nil {
			s := v.(*slot)
			sh.detachLocked(s)
			g.target.attachLocked(s, key)
			sh.mu.Unlock()
			return s, sh.id
		}
		sh.mu.Unlock()
	}
	return nil, -1
}

// wait sleeps until some buffer may have become free. The target shard is
// unlocked while sleeping so releases into it can proceed.
func (g *evictGuard) wait() {
	g.target.mu.Unlock()
	g.c.freed.Wait()
	g.target.mu.Lock()
}

// evict is the slow path of Get. It re-checks the target shard for a hit
// or a local free slot under the global lock before stealing, so two callers
// racing on the same missing block end up sharing one buffer.
func (c *Cache) evict(target *shard, key blockKey) (*slot, bool, RecycleReason) {
	g := c.lockForEviction(target)
	for {
		if s, hit := target.getLocked(key); s != nil {
			g.unlock()
			return s, hit, RecycleLocal
		}
		if s, from := g.steal(key); s != nil {
			g.unlock()
			c.log.Debug("bcache: stole buffer",
				"dev", key.dev, "blockno", key.blockno, "from", from, "to", target.id)
			return s, false, RecycleSteal
		}
		if !c.opt.WaitForBuffers {
			g.unlock()
			c.fatal(ErrNoBuffers, "dev", key.dev, "blockno", key.blockno, "shard", target.id)
		}
		c.log.Debug("bcache: waiting for a free buffer",
			"dev", key.dev, "blockno", key.blockno, "shard", target.id)
		c.metrics.Wait()
		g.wait()
	}
}

// wakeWaiters is called after some refcnt dropped to zero, with no lock held.
func (c *Cache) wakeWaiters() {
	if c.waiters.Load() == 0 {
		return
	}
	c.evictMu.Lock()
	c.freed.Broadcast()
	c.evictMu.Unlock()
}
