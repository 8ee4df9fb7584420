// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"context"
	"math"
	"time"
)

// Semaphore is a counting semaphore built on [Synchronizer].
//
// The state word is the number of available permits. Permits have no
// owner: any goroutine may release permits it never acquired.
//
// A barging Semaphore lets an arriving goroutine take permits ahead of
// queued waiters; one from [NewFairSemaphore] serves waiters in FIFO
// order.
type Semaphore struct {
	s *Synchronizer
}

// NewSemaphore creates a barging semaphore with the given permits.
// permits may be negative, in which case releases must happen before any
// acquire succeeds.
func NewSemaphore(permits int64) *Semaphore {
	sem := &Semaphore{s: New(semaphorePolicy{}).Name("qsync.Semaphore").Build()}
	sem.s.SetState(permits)
	return sem
}

// NewFairSemaphore creates a FIFO semaphore with the given permits.
func NewFairSemaphore(permits int64) *Semaphore {
	sem := &Semaphore{s: New(semaphorePolicy{fair: true}).Name("qsync.FairSemaphore").Build()}
	sem.s.SetState(permits)
	return sem
}

// Acquire takes n permits, blocking until they are available.
func (sem *Semaphore) Acquire(n int64) {
	checkCount(sem.s, n)
	sem.s.AcquireShared(n)
}

// AcquireContext takes n permits or returns ctx.Err() if ctx is done
// first.
func (sem *Semaphore) AcquireContext(ctx context.Context, n int64) error {
	checkCount(sem.s, n)
	return sem.s.AcquireSharedContext(ctx, n)
}

// TryAcquire takes n permits only if they are available now. A fair
// semaphore still barges here.
func (sem *Semaphore) TryAcquire(n int64) bool {
	checkCount(sem.s, n)
	return semaphorePolicy{}.TryAcquireShared(sem.s, n) >= 0
}

// TryAcquireFor takes n permits, giving up after d.
func (sem *Semaphore) TryAcquireFor(ctx context.Context, n int64, d time.Duration) (bool, error) {
	checkCount(sem.s, n)
	return sem.s.TryAcquireSharedFor(ctx, n, d)
}

// Release returns n permits.
func (sem *Semaphore) Release(n int64) {
	checkCount(sem.s, n)
	sem.s.ReleaseShared(n)
}

// AvailablePermits returns the current number of permits.
func (sem *Semaphore) AvailablePermits() int64 {
	return sem.s.State()
}

// DrainPermits takes every available permit and returns how many.
func (sem *Semaphore) DrainPermits() int64 {
	for {
		c := sem.s.State()
		if c == 0 || sem.s.CompareAndSetState(c, 0) {
			return c
		}
	}
}

// Synchronizer exposes the underlying synchronizer for inspection.
func (sem *Semaphore) Synchronizer() *Synchronizer {
	return sem.s
}

func checkCount(s *Synchronizer, n int64) {
	if n < 0 {
		panicViolation(ErrNegativeCount, "%s: count %d", s, n)
	}
}

// semaphorePolicy is the shared policy behind Semaphore.
type semaphorePolicy struct {
	fair bool
}

func (p semaphorePolicy) TryAcquireShared(s *Synchronizer, acquires int64) int64 {
	for {
		if p.fair && s.HasQueuedPredecessors() {
			return -1
		}
		available := s.State()
		remaining := available - acquires
		if remaining < 0 || s.CompareAndSetState(available, remaining) {
			return remaining
		}
	}
}

func (semaphorePolicy) TryReleaseShared(s *Synchronizer, releases int64) bool {
	for {
		current := s.State()
		if current > math.MaxInt64-releases {
			panicViolation(ErrHoldOverflow, "%s: release", s)
		}
		if s.CompareAndSetState(current, current+releases) {
			return true
		}
	}
}
