// Package lru implements the LRU buffer recycling policy.
package lru

import "github.com/IvanBrykalov/bcache/policy"

// lru keeps released buffers at MRU and recycles the free buffer closest
// to the LRU end. It delegates list manipulation to policy.Hooks.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New() policy.Policy { return lruPolicy{} }

// New implements policy.Policy by binding shard hooks and returning
// a shard-local policy instance.
func (lruPolicy) New(h policy.Hooks) policy.ShardPolicy {
	return &lru{h: h}
}

// OnInsert places a node that joined the shard at MRU.
func (p *lru) OnInsert(n policy.Node) { p.h.PushFront(n) }

// OnRelease promotes the node to MRU so it is recycled last.
func (p *lru) OnRelease(n policy.Node) { p.h.MoveToFront(n) }

// OnRemove is a no-op for pure LRU (nothing to clean up in policy state).
func (p *lru) OnRemove(_ policy.Node) {}

// Victim walks from LRU towards MRU and returns the first free node.
// Held or pinned nodes are skipped regardless of position.
func (p *lru) Victim() policy.Node {
	for n := p.h.Back(); n != nil; n = p.h.Prev(n) {
		if n.Free() {
			return n
		}
	}
	return nil
}
