package lru

import (
	"slices"
	"testing"

	"github.com/IvanBrykalov/bcache/policy"
)

// --- test doubles ---

type testNode struct {
	id   int
	refs int
}

func (n *testNode) Free() bool { return n.refs == 0 }

// mockHooks keeps the list as a slice: index 0 is MRU, last is LRU.
type mockHooks struct {
	list []policy.Node

	pushFrontCnt   int
	moveToFrontCnt int
	removeCnt      int
}

func (h *mockHooks) index(n policy.Node) int { return slices.Index(h.list, n) }

func (h *mockHooks) MoveToFront(n policy.Node) {
	h.moveToFrontCnt++
	h.list = slices.Delete(h.list, h.index(n), h.index(n)+1)
	h.list = slices.Insert(h.list, 0, n)
}
func (h *mockHooks) PushFront(n policy.Node) {
	h.pushFrontCnt++
	h.list = slices.Insert(h.list, 0, n)
}
func (h *mockHooks) Remove(n policy.Node) {
	h.removeCnt++
	h.list = slices.Delete(h.list, h.index(n), h.index(n)+1)
}
func (h *mockHooks) Back() policy.Node {
	if len(h.list) == 0 {
		return nil
	}
	return h.list[len(h.list)-1]
}
func (h *mockHooks) Prev(n policy.Node) policy.Node {
	i := h.index(n)
	if i <= 0 {
		return nil
	}
	return h.list[i-1]
}
func (h *mockHooks) Len() int { return len(h.list) }

func ids(h *mockHooks) []int {
	out := make([]int, 0, len(h.list))
	for _, n := range h.list {
		out = append(out, n.(*testNode).id)
	}
	return out
}

// --- tests ---

// OnInsert should push the node to MRU.
func TestLRU_OnInsert_PushFront(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New().New(h)

	a, b := &testNode{id: 1}, &testNode{id: 2}
	p.OnInsert(a)
	p.OnInsert(b)

	if h.pushFrontCnt != 2 {
		t.Fatalf("OnInsert must call PushFront once per node, got %d", h.pushFrontCnt)
	}
	if got := ids(h); !slices.Equal(got, []int{2, 1}) {
		t.Fatalf("want MRU order [2 1], got %v", got)
	}
}

// OnRelease should promote the node to MRU.
func TestLRU_OnRelease_MoveToFront(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New().New(h)
	a, b, c := &testNode{id: 1}, &testNode{id: 2}, &testNode{id: 3}
	p.OnInsert(a)
	p.OnInsert(b)
	p.OnInsert(c) // [3 2 1]

	p.OnRelease(a)

	if h.moveToFrontCnt != 1 {
		t.Fatalf("OnRelease must call MoveToFront exactly once")
	}
	if got := ids(h); !slices.Equal(got, []int{1, 3, 2}) {
		t.Fatalf("want [1 3 2], got %v", got)
	}
}

// OnRemove is a no-op for pure LRU.
func TestLRU_OnRemove_NoOp(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New().New(h)
	p.OnRemove(&testNode{id: 4})

	if h.pushFrontCnt != 0 || h.moveToFrontCnt != 0 || h.removeCnt != 0 {
		t.Fatalf("OnRemove for LRU must be no-op (no hooks should be called)")
	}
}

// Victim should pick the free node nearest the LRU end, skipping busy ones.
func TestLRU_Victim_SkipsBusy(t *testing.T) {
	t.Parallel()

	h := &mockHooks{}
	p := New().New(h)
	a, b, c := &testNode{id: 1}, &testNode{id: 2}, &testNode{id: 3}
	p.OnInsert(a)
	p.OnInsert(b)
	p.OnInsert(c) // [3 2 1], LRU = 1

	if v := p.Victim(); v != a {
		t.Fatalf("want LRU node 1, got %v", v)
	}

	a.refs = 1
	if v := p.Victim(); v != b {
		t.Fatalf("busy LRU must be skipped; want 2, got %v", v)
	}

	b.refs, c.refs = 2, 1
	if v := p.Victim(); v != nil {
		t.Fatalf("no free nodes; want nil, got %v", v)
	}
	if h.removeCnt != 0 {
		t.Fatalf("Victim must not unlink")
	}
}

func TestLRU_Victim_Empty(t *testing.T) {
	t.Parallel()

	p := New().New(&mockHooks{})
	if v := p.Victim(); v != nil {
		t.Fatalf("empty shard; want nil, got %v", v)
	}
}
