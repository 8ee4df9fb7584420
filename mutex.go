// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"code.hybscloud.com/qsync/internal/goid"
)

// Mutex is a reentrant mutual exclusion lock built on [Synchronizer].
//
// The state word is the hold count; the owner is the goroutine that took
// it from zero. Unlike sync.Mutex, a Mutex is owned: only the goroutine
// that locked it may unlock it, and it may lock it again without
// deadlocking. Each Lock must be paired with an Unlock.
//
// The default Mutex lets an arriving goroutine take a free lock ahead of
// queued waiters (barging), which maximises throughput. A fair Mutex
// from [NewFairMutex] grants the lock in queue order.
type Mutex struct {
	s *Synchronizer
}

var _ sync.Locker = (*Mutex)(nil)

// NewMutex creates a barging reentrant mutex.
func NewMutex() *Mutex {
	return &Mutex{s: New(mutexPolicy{}).Name("qsync.Mutex").Build()}
}

// NewFairMutex creates a reentrant mutex that grants ownership in FIFO
// order to queued goroutines.
func NewFairMutex() *Mutex {
	return &Mutex{s: New(mutexPolicy{fair: true}).Name("qsync.FairMutex").Build()}
}

// Lock acquires the mutex, blocking until it is available.
func (m *Mutex) Lock() {
	m.s.Acquire(1)
}

// LockContext acquires the mutex or returns ctx.Err() if ctx is done
// first.
func (m *Mutex) LockContext(ctx context.Context) error {
	return m.s.AcquireContext(ctx, 1)
}

// TryLock acquires the mutex only if it is free or already held by the
// caller. A fair mutex still barges here.
func (m *Mutex) TryLock() bool {
	return mutexPolicy{}.TryAcquire(m.s, 1)
}

// TryLockFor acquires the mutex, giving up after d.
func (m *Mutex) TryLockFor(ctx context.Context, d time.Duration) (bool, error) {
	return m.s.TryAcquireFor(ctx, 1, d)
}

// Unlock releases one hold. Panics with [ErrNotOwner] if the caller does
// not hold the mutex.
func (m *Mutex) Unlock() {
	m.s.Release(1)
}

// NewCond returns a condition bound to m.
func (m *Mutex) NewCond() *Condition {
	return m.s.NewCondition()
}

// HoldCount returns the caller's hold count, or 0 if it does not own m.
func (m *Mutex) HoldCount() int64 {
	if m.s.ExclusiveOwner() == goid.Get() {
		return m.s.State()
	}
	return 0
}

// IsLocked reports whether any goroutine holds m.
func (m *Mutex) IsLocked() bool {
	return m.s.State() != 0
}

// IsHeldByCurrentGoroutine reports whether the caller holds m.
func (m *Mutex) IsHeldByCurrentGoroutine() bool {
	return m.s.IsHeldExclusively()
}

// Synchronizer exposes the underlying synchronizer for inspection.
func (m *Mutex) Synchronizer() *Synchronizer {
	return m.s
}

func (m *Mutex) String() string {
	if id := m.s.ExclusiveOwner(); id != 0 {
		return m.s.String() + "[locked by goroutine " + strconv.FormatInt(id, 10) + "]"
	}
	return m.s.String() + "[unlocked]"
}

// mutexPolicy is the reentrant exclusive policy behind Mutex.
type mutexPolicy struct {
	fair bool
}

func (p mutexPolicy) TryAcquire(s *Synchronizer, acquires int64) bool {
	me := goid.Get()
	c := s.State()
	if c == 0 {
		if p.fair && s.HasQueuedPredecessors() {
			return false
		}
		if s.CompareAndSetState(0, acquires) {
			s.SetExclusiveOwner(me)
			return true
		}
		return false
	}
	if s.ExclusiveOwner() == me {
		if c > math.MaxInt64-acquires {
			panicViolation(ErrHoldOverflow, "%s: lock", s)
		}
		s.SetState(c + acquires)
		return true
	}
	return false
}

func (mutexPolicy) TryRelease(s *Synchronizer, releases int64) bool {
	if s.ExclusiveOwner() != goid.Get() {
		panicViolation(ErrNotOwner, "%s: unlock", s)
	}
	c := s.State() - releases
	free := c == 0
	if free {
		s.SetExclusiveOwner(0)
	}
	s.SetState(c)
	return free
}

func (mutexPolicy) IsHeldExclusively(s *Synchronizer) bool {
	return s.ExclusiveOwner() == goid.Get()
}
