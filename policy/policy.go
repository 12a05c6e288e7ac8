// Package policy defines the contract between a cache shard and its
// placement/victim-selection strategy.
package policy

// Node is the minimal contract a buffer slot must satisfy for a policy.
type Node interface {
	// Free reports whether the node has no holders and may be recycled.
	// Only meaningful under the shard lock.
	Free() bool
}

// Hooks expose O(1) list operations that a policy can use to manipulate
// the shard's intrusive MRU/LRU list. Implementations are provided by the shard.
//
// Concurrency: all hook calls happen under the shard lock.
// Important: hooks manage only the list; the shard owns identity bookkeeping.
type Hooks interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Node)
	// PushFront inserts the node at MRU (used when a node joins the shard).
	PushFront(Node)
	// Remove detaches the node from the list.
	Remove(Node)
	// Back returns the current LRU node (or nil if empty).
	Back() Node
	// Prev returns the neighbour of n towards MRU (or nil at the head).
	Prev(n Node) Node
	// Len returns the number of nodes linked into the shard.
	Len() int
}

// ShardPolicy is a per-shard policy instance bound to shard hooks.
// All methods are invoked under the shard lock.
//
// Semantics:
//   - OnInsert places a node that joined the shard (initial fill or a
//     cross-shard steal).
//   - OnRelease is called when the last reference to a node is dropped.
//   - OnRemove is a notification before the shard unlinks a node that is
//     moving to another shard. The shard performs the unlink.
//   - Victim picks a free node to recycle without unlinking it, or nil.
type ShardPolicy interface {
	OnInsert(Node)
	OnRelease(Node)
	OnRemove(Node)
	Victim() Node
}

// Policy is a factory that creates shard-local policy instances
// bound to a particular shard's hooks.
type Policy interface {
	New(Hooks) ShardPolicy
}
