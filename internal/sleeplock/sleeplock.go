// Package sleeplock provides a blocking exclusive lock that may be held across
// a suspending operation such as a device transfer.
//
// Unlike sync.Mutex the lock records which owner token acquired it, so the
// holder can be asserted (HeldBy) and a release by anyone else is refused.
// Waiters block in the underlying semaphore and do not spin.
package sleeplock

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrNotOwner is returned by Release when the caller's token does not hold the lock.
var ErrNotOwner = errors.New("sleeplock: release by non-owner")

// Lock is a holder-aware sleeping lock. Owners are identified by pointer
// identity of a *T token. Call Init before first use.
type Lock[T any] struct {
	name  string
	sem   *semaphore.Weighted
	owner atomic.Pointer[T]
}

// Init prepares the lock. It must be called exactly once before use.
func (l *Lock[T]) Init(name string) {
	l.name = name
	l.sem = semaphore.NewWeighted(1)
	l.owner.Store(nil)
}

// Name returns the debugging name given to Init.
func (l *Lock[T]) Name() string { return l.name }

// Acquire blocks until the lock is free and records o as its owner.
func (l *Lock[T]) Acquire(o *T) {
	// Background never cancels, so Acquire cannot fail here.
	_ = l.sem.Acquire(context.Background(), 1)
	l.owner.Store(o)
}

// AcquireContext is Acquire that gives up when ctx is done.
func (l *Lock[T]) AcquireContext(ctx context.Context, o *T) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.owner.Store(o)
	return nil
}

// Release frees the lock if o holds it; otherwise it returns ErrNotOwner and
// leaves the lock untouched.
func (l *Lock[T]) Release(o *T) error {
	if o == nil || !l.owner.CompareAndSwap(o, nil) {
		return ErrNotOwner
	}
	l.sem.Release(1)
	return nil
}

// HeldBy reports whether o currently holds the lock.
func (l *Lock[T]) HeldBy(o *T) bool {
	return o != nil && l.owner.Load() == o
}

// Held reports whether anyone holds the lock.
func (l *Lock[T]) Held() bool { return l.owner.Load() != nil }
