package bcache

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/IvanBrykalov/bcache/device"
)

const testDev = 1

// newTestCache builds a cache over one in-memory disk registered as testDev.
func newTestCache(t testing.TB, opt Options) (*Cache, *device.Mem) {
	t.Helper()
	mem := device.NewMem(1 << 16)
	if opt.Device == nil {
		tb := device.NewTable()
		tb.Register(testDev, mem)
		opt.Device = tb
	}
	return New(opt), mem
}

// refcnt reads b's reference count under its shard lock.
func refcnt(c *Cache, b *Buf) int32 {
	sh := c.shardFor(b.s.blockno)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return b.s.refcnt
}

// checkInvariants freezes the cache (global lock, then every shard in
// ascending order) and verifies the structural invariants.
func checkInvariants(t testing.TB, c *Cache) {
	t.Helper()
	if err := invariants(c); err != nil {
		t.Fatal(err)
	}
}

func invariants(c *Cache) error {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()
	for _, sh := range c.shards {
		sh.mu.Lock()
	}
	defer func() {
		for _, sh := range c.shards {
			sh.mu.Unlock()
		}
	}()

	seen := make([]int, len(c.slots))
	live := make(map[blockKey]int32)
	for _, sh := range c.shards {
		n := 0
		prev := none
		for i := sh.head; i != none; i = c.slots[i].next {
			s := &c.slots[i]
			seen[i]++
			n++
			if s.prev != prev {
				return fmt.Errorf("shard %d: slot %d prev=%d want %d", sh.id, i, s.prev, prev)
			}
			prev = i
			if s.refcnt < 0 {
				return fmt.Errorf("slot %d: negative refcnt %d", i, s.refcnt)
			}
			if s.bound {
				if got := int(s.blockno) % len(c.shards); got != sh.id {
					return fmt.Errorf("slot %d: block %d linked into shard %d, want %d", i, s.blockno, sh.id, got)
				}
				if sh.m[s.key()] != s {
					return fmt.Errorf("shard %d: slot %d missing from index", sh.id, i)
				}
			}
			if s.refcnt > 0 {
				if other, dup := live[s.key()]; dup {
					return fmt.Errorf("slots %d and %d both live for %v", other, i, s.key())
				}
				live[s.key()] = s.idx
			}
		}
		if prev != sh.tail {
			return fmt.Errorf("shard %d: tail=%d, walk ended at %d", sh.id, sh.tail, prev)
		}
		if n != sh.len {
			return fmt.Errorf("shard %d: len=%d, walked %d", sh.id, sh.len, n)
		}
		for k, s := range sh.m {
			if !s.bound || s.key() != k || int(k.blockno)%len(c.shards) != sh.id {
				return fmt.Errorf("shard %d: index entry %v points at slot %d bound to %v", sh.id, k, s.idx, s.key())
			}
		}
	}
	for i, k := range seen {
		if k != 1 {
			return fmt.Errorf("slot %d linked into %d lists", i, k)
		}
	}
	return nil
}

// recordingMetrics counts every hook call.
type recordingMetrics struct {
	hits, misses, local, steal, reads, writes, errs, waits atomic.Int64
}

func (m *recordingMetrics) Hit()  { m.hits.Add(1) }
func (m *recordingMetrics) Miss() { m.misses.Add(1) }
func (m *recordingMetrics) Recycle(r RecycleReason) {
	if r == RecycleSteal {
		m.steal.Add(1)
		return
	}
	m.local.Add(1)
}
func (m *recordingMetrics) Transfer(write bool, err error) {
	switch {
	case err != nil:
		m.errs.Add(1)
	case write:
		m.writes.Add(1)
	default:
		m.reads.Add(1)
	}
}
func (m *recordingMetrics) Wait() { m.waits.Add(1) }
