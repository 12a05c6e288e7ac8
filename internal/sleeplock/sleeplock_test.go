package sleeplock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type token struct{ id int }

func newLock(t *testing.T) *Lock[token] {
	t.Helper()
	var l Lock[token]
	l.Init("test")
	return &l
}

func TestLock_AcquireRelease(t *testing.T) {
	t.Parallel()

	l := newLock(t)
	a := &token{id: 1}

	require.False(t, l.Held())
	l.Acquire(a)
	require.True(t, l.HeldBy(a))
	require.True(t, l.Held())
	require.NoError(t, l.Release(a))
	require.False(t, l.HeldBy(a))
	require.Equal(t, "test", l.Name())
}

func TestLock_ReleaseByNonOwner(t *testing.T) {
	t.Parallel()

	l := newLock(t)
	a, b := &token{id: 1}, &token{id: 2}

	l.Acquire(a)
	require.ErrorIs(t, l.Release(b), ErrNotOwner)
	require.ErrorIs(t, l.Release(nil), ErrNotOwner)
	require.True(t, l.HeldBy(a), "failed release must not drop the lock")

	require.NoError(t, l.Release(a))
	require.ErrorIs(t, l.Release(a), ErrNotOwner, "double release")
}

func TestLock_AcquireContextCanceled(t *testing.T) {
	t.Parallel()

	l := newLock(t)
	a, b := &token{id: 1}, &token{id: 2}
	l.Acquire(a)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.AcquireContext(ctx, b), context.DeadlineExceeded)
	require.True(t, l.HeldBy(a))
}

// Waiters block while the lock is held and take it one at a time.
func TestLock_MutualExclusion(t *testing.T) {
	t.Parallel()

	l := newLock(t)
	var inside, maxInside atomic.Int32

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			o := &token{id: i}
			for j := 0; j < 50; j++ {
				l.Acquire(o)
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				inside.Add(-1)
				if err := l.Release(o); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, maxInside.Load())
}
