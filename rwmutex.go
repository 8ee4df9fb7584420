// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"context"
	"sync"

	"code.hybscloud.com/qsync/internal/goid"
)

// RWMutex is a reader/writer lock built on [Synchronizer].
//
// The state word is -1 while a writer holds the lock and the number of
// readers otherwise. Readers use shared mode, so a writer's release wakes
// the whole run of readers queued behind it. A new reader does not barge
// past a writer at the front of the queue.
//
// RWMutex is not reentrant. The write lock is owned by the goroutine that
// took it and supports [Condition] via NewCond.
type RWMutex struct {
	s *Synchronizer
}

var _ sync.Locker = (*RWMutex)(nil)

// NewRWMutex creates an unlocked reader/writer lock.
func NewRWMutex() *RWMutex {
	return &RWMutex{s: New(rwPolicy{}).Name("qsync.RWMutex").Build()}
}

// Lock acquires the write lock.
func (rw *RWMutex) Lock() {
	rw.s.Acquire(1)
}

// LockContext acquires the write lock or returns ctx.Err().
func (rw *RWMutex) LockContext(ctx context.Context) error {
	return rw.s.AcquireContext(ctx, 1)
}

// TryLock acquires the write lock only if it is free.
func (rw *RWMutex) TryLock() bool {
	return rw.s.TryAcquire(1) == nil
}

// Unlock releases the write lock. Panics with [ErrNotOwner] if the caller
// does not hold it.
func (rw *RWMutex) Unlock() {
	rw.s.Release(1)
}

// RLock acquires a read lock.
func (rw *RWMutex) RLock() {
	rw.s.AcquireShared(1)
}

// RLockContext acquires a read lock or returns ctx.Err().
func (rw *RWMutex) RLockContext(ctx context.Context) error {
	return rw.s.AcquireSharedContext(ctx, 1)
}

// TryRLock acquires a read lock only if no writer holds or is first in
// line for the lock.
func (rw *RWMutex) TryRLock() bool {
	return rw.s.TryAcquireShared(1) == nil
}

// RUnlock releases a read lock. Panics with [ErrNotOwner] if no read lock
// is held.
func (rw *RWMutex) RUnlock() {
	rw.s.ReleaseShared(1)
}

// RLocker returns a sync.Locker that uses the read lock.
func (rw *RWMutex) RLocker() sync.Locker {
	return (*rlocker)(rw)
}

// NewCond returns a condition bound to the write lock.
func (rw *RWMutex) NewCond() *Condition {
	return rw.s.NewCondition()
}

// Readers returns the number of read locks held.
func (rw *RWMutex) Readers() int64 {
	if c := rw.s.State(); c > 0 {
		return c
	}
	return 0
}

// IsWriteLocked reports whether a writer holds the lock.
func (rw *RWMutex) IsWriteLocked() bool {
	return rw.s.State() < 0
}

// Synchronizer exposes the underlying synchronizer for inspection.
func (rw *RWMutex) Synchronizer() *Synchronizer {
	return rw.s
}

type rlocker RWMutex

func (r *rlocker) Lock()   { (*RWMutex)(r).RLock() }
func (r *rlocker) Unlock() { (*RWMutex)(r).RUnlock() }

const rwWriteLocked = -1

// rwPolicy is the exclusive and shared policy behind RWMutex.
type rwPolicy struct{}

func (rwPolicy) TryAcquire(s *Synchronizer, _ int64) bool {
	if s.CompareAndSetState(0, rwWriteLocked) {
		s.SetExclusiveOwner(goid.Get())
		return true
	}
	return false
}

func (rwPolicy) TryRelease(s *Synchronizer, _ int64) bool {
	if s.State() != rwWriteLocked || s.ExclusiveOwner() != goid.Get() {
		panicViolation(ErrNotOwner, "%s: unlock", s)
	}
	s.SetExclusiveOwner(0)
	s.SetState(0)
	return true
}

func (rwPolicy) TryAcquireShared(s *Synchronizer, _ int64) int64 {
	for {
		c := s.State()
		if c < 0 || s.ApparentlyFirstQueuedIsExclusive() {
			return -1
		}
		if s.CompareAndSetState(c, c+1) {
			return 1
		}
	}
}

func (rwPolicy) TryReleaseShared(s *Synchronizer, _ int64) bool {
	for {
		c := s.State()
		if c <= 0 {
			panicViolation(ErrNotOwner, "%s: runlock", s)
		}
		if s.CompareAndSetState(c, c-1) {
			return c == 1
		}
	}
}

func (rwPolicy) IsHeldExclusively(s *Synchronizer) bool {
	return s.State() == rwWriteLocked && s.ExclusiveOwner() == goid.Get()
}
