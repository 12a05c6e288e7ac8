package bcache

import (
	"sync"

	"github.com/IvanBrykalov/bcache/internal/util"
	"github.com/IvanBrykalov/bcache/policy"
)

// shard is one hash bucket of the cache with its own lock, an identity
// index of bound slots, and an intrusive index-linked list (head=MRU, tail=LRU).
type shard struct {
	id int

	// ---- guarded by mu ----
	mu   sync.Mutex
	m    map[blockKey]*slot
	head int32 // MRU
	tail int32 // LRU
	len  int   // number of linked slots

	slots []slot // shared arena, owned by Cache
	pol   policy.ShardPolicy

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_        util.CacheLinePad
	hits     util.PaddedAtomicUint64
	misses   util.PaddedAtomicUint64
	recycles util.PaddedAtomicUint64
	steals   util.PaddedAtomicUint64
}

func newShard(id int, slots []slot, pol policy.Policy) *shard {
	sh := &shard{
		id:    id,
		m:     make(map[blockKey]*slot),
		head:  none,
		tail:  none,
		slots: slots,
	}
	sh.pol = pol.New(shardHooks{sh: sh})
	return sh
}

// getLocked returns a referenced slot for key from this shard only:
// either the slot already caching key (hit) or a free local slot rebound
// to key. It returns nil if neither exists.
func (sh *shard) getLocked(key blockKey) (s *slot, hit bool) {
	if s, ok := sh.m[key]; ok {
		s.refcnt++
		return s, true
	}
	v := sh.pol.Victim()
	if v == nil {
		return nil, false
	}
	s = v.(*slot)
	if s.bound {
		delete(sh.m, s.key())
	}
	sh.bindLocked(s, key)
	sh.recycles.Add(1)
	return s, false
}

// bindLocked gives s the identity key with one reference. The slot must be
// free and already linked into this shard.
func (sh *shard) bindLocked(s *slot, key blockKey) {
	s.dev = key.dev
	s.blockno = key.blockno
	s.bound = true
	s.valid = false
	s.refcnt = 1
	sh.m[key] = s
}

// detachLocked unlinks a free slot that is moving to another shard.
func (sh *shard) detachLocked(s *slot) {
	sh.pol.OnRemove(s)
	sh.removeNode(s)
	if s.bound {
		delete(sh.m, s.key())
	}
}

// attachLocked links a slot detached from another shard and binds it to key.
func (sh *shard) attachLocked(s *slot, key blockKey) {
	sh.bindLocked(s, key)
	sh.pol.OnInsert(s)
	sh.steals.Add(1)
}

// releaseLocked drops one reference and reports whether the slot became free.
func (sh *shard) releaseLocked(s *slot) bool {
	s.refcnt--
	if s.refcnt == 0 {
		sh.pol.OnRelease(s)
		return true
	}
	return false
}

// -------------------- list internals (mu held) --------------------

func (sh *shard) at(i int32) *slot {
	if i == none {
		return nil
	}
	return &sh.slots[i]
}

// insertFront inserts s at MRU in O(1).
func (sh *shard) insertFront(s *slot) {
	s.prev = none
	s.next = sh.head
	if sh.head != none {
		sh.slots[sh.head].prev = s.idx
	}
	sh.head = s.idx
	if sh.tail == none {
		sh.tail = s.idx
	}
	sh.len++
}

// moveToFront promotes s to MRU in O(1).
func (sh *shard) moveToFront(s *slot) {
	if sh.head == s.idx {
		return
	}
	sh.removeNode(s)
	sh.insertFront(s)
}

// removeNode unlinks s in O(1).
func (sh *shard) removeNode(s *slot) {
	if s.prev != none {
		sh.slots[s.prev].next = s.next
	} else {
		sh.head = s.next
	}
	if s.next != none {
		sh.slots[s.next].prev = s.prev
	} else {
		sh.tail = s.prev
	}
	s.prev, s.next = none, none
	sh.len--
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
// Back and Prev must return an untyped nil at the ends of the list.
type shardHooks struct{ sh *shard }

func (h shardHooks) MoveToFront(x policy.Node) { h.sh.moveToFront(x.(*slot)) }
func (h shardHooks) PushFront(x policy.Node)   { h.sh.insertFront(x.(*slot)) }
func (h shardHooks) Remove(x policy.Node)      { h.sh.removeNode(x.(*slot)) }
func (h shardHooks) Len() int                  { return h.sh.len }

func (h shardHooks) Back() policy.Node {
	if s := h.sh.at(h.sh.tail); s != nil {
		return s
	}
	return nil
}

func (h shardHooks) Prev(x policy.Node) policy.Node {
	if s := h.sh.at(x.(*slot).prev); s != nil {
		return s
	}
	return nil
}
