// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"context"
	"sync/atomic"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"
)

// spinForTimeoutThreshold is the remaining wait below which a timed
// acquire spins instead of parking on a timer.
const spinForTimeoutThreshold = time.Microsecond

// Synchronizer is a FIFO wait queue plus a state word, driven by a policy.
//
// The policy decides what acquire and release mean by reading and CASing
// the state; the synchronizer queues goroutines whose attempts fail, parks
// them, and wakes the next eligible waiter when a release succeeds.
//
// The wait queue is a lock-free doubly linked list. head is a sentinel
// that never carries a waiter: it stands for whoever last acquired. The
// queue is created on first contention, so an uncontended synchronizer
// never allocates a node.
//
// Create with [New] or [NewSynchronizer]. A Synchronizer must not be
// copied after first use.
type Synchronizer struct {
	_      cpu.CacheLinePad
	head   atomic.Pointer[node]
	_      cpu.CacheLinePad
	tail   atomic.Pointer[node]
	_      cpu.CacheLinePad
	state  atomix.Int64
	holder atomix.Int64 // Exclusive owner goroutine id, 0 if none
	_      cpu.CacheLinePad

	exclusive ExclusivePolicy
	shared    SharedPolicy
	ownership OwnerPolicy
	name      string
	spins     int
}

// State returns the current state word.
func (s *Synchronizer) State() int64 {
	return s.state.LoadAcquire()
}

// SetState stores the state word.
// Use only when the caller already owns the synchronizer exclusively.
func (s *Synchronizer) SetState(v int64) {
	s.state.StoreRelease(v)
}

// CompareAndSetState atomically sets the state to update if it equals
// expect.
func (s *Synchronizer) CompareAndSetState(expect, update int64) bool {
	return s.state.CompareAndSwapAcqRel(expect, update)
}

// ExclusiveOwner returns the goroutine id recorded by the policy as the
// exclusive owner, or 0.
func (s *Synchronizer) ExclusiveOwner() int64 {
	return s.holder.LoadAcquire()
}

// SetExclusiveOwner records the exclusive owner. Pass 0 to clear.
func (s *Synchronizer) SetExclusiveOwner(id int64) {
	s.holder.StoreRelease(id)
}

// Acquire acquires in exclusive mode, ignoring cancellation.
//
// The policy is tried once; on failure the goroutine queues and parks
// until it is first in line and the policy succeeds.
func (s *Synchronizer) Acquire(arg int64) {
	if s.mustExclusive().TryAcquire(s, arg) {
		return
	}
	s.acquireExclusive(nil, arg, time.Time{})
}

// AcquireContext acquires in exclusive mode, aborting if ctx is done.
// Returns ctx.Err() if the acquire was abandoned.
func (s *Synchronizer) AcquireContext(ctx context.Context, arg int64) error {
	ex := s.mustExclusive()
	if err := ctx.Err(); err != nil {
		return err
	}
	if ex.TryAcquire(s, arg) {
		return nil
	}
	_, err := s.acquireExclusive(ctx, arg, time.Time{})
	return err
}

// TryAcquireFor acquires in exclusive mode, giving up after d.
//
// Returns (true, nil) on success, (false, nil) on timeout, and
// (false, ctx.Err()) if ctx is done first. A timed-out or abandoned
// waiter is unlinked before returning.
func (s *Synchronizer) TryAcquireFor(ctx context.Context, arg int64, d time.Duration) (bool, error) {
	ex := s.mustExclusive()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if ex.TryAcquire(s, arg) {
		return true, nil
	}
	if d <= 0 {
		return false, nil
	}
	return s.acquireExclusive(ctx, arg, time.Now().Add(d))
}

// TryAcquire makes a single non-blocking exclusive attempt.
// Returns ErrWouldBlock if the policy refuses.
func (s *Synchronizer) TryAcquire(arg int64) error {
	if s.mustExclusive().TryAcquire(s, arg) {
		return nil
	}
	return ErrWouldBlock
}

// Release releases in exclusive mode.
//
// Returns the policy's verdict. When the synchronizer became fully
// released, the first waiter, if any, is woken.
func (s *Synchronizer) Release(arg int64) bool {
	if !s.mustExclusive().TryRelease(s, arg) {
		return false
	}
	if h := s.head.Load(); h != nil && h.status.LoadAcquire() != statusInitial {
		s.unparkSuccessor(h)
	}
	return true
}

// acquireExclusive queues the calling goroutine and runs the exclusive
// acquire loop.
func (s *Synchronizer) acquireExclusive(ctx context.Context, arg int64, deadline time.Time) (bool, error) {
	p := acquireParker()
	defer releaseParker(p)
	return s.acquireQueued(ctx, s.addWaiter(Exclusive, p), arg, deadline)
}

// acquireQueued runs the exclusive acquire loop for n, which is already on
// the wait queue. Condition waits reenter here after being transferred.
//
// On timeout, cancellation, or a policy panic, n is cancelled before
// returning.
func (s *Synchronizer) acquireQueued(ctx context.Context, n *node, arg int64, deadline time.Time) (acquired bool, err error) {
	p := n.waiter.Load()
	failed := true
	defer func() {
		if failed {
			s.cancelAcquire(n)
		}
	}()

	sw := spin.Wait{}
	spun := 0
	for {
		pred := n.predecessor()
		if pred == s.head.Load() && s.exclusive.TryAcquire(s, arg) {
			s.setHead(n)
			pred.next.Store(nil)
			failed = false
			return true, nil
		}
		ok, err := s.waitTurn(ctx, pred, n, p, deadline, &spun, &sw)
		if !ok {
			if err == nil {
				debugf("qsync: %s: exclusive acquire timed out", s)
			}
			return false, err
		}
	}
}

// waitTurn performs one blocking step of a queued acquire after a failed
// attempt. It returns false when the acquire must be abandoned, with
// ctx.Err() on cancellation and nil on timeout.
func (s *Synchronizer) waitTurn(ctx context.Context, pred, n *node, p *parker, deadline time.Time, spun *int, sw *spin.Wait) (bool, error) {
	var remaining time.Duration
	if !deadline.IsZero() {
		remaining = time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
	}
	if !s.shouldParkAfterFailedAcquire(pred, n) {
		return true, nil
	}
	if *spun < s.spins && pred == s.head.Load() {
		*spun++
		sw.Once()
		return true, nil
	}
	if !deadline.IsZero() && remaining < spinForTimeoutThreshold {
		sw.Once()
		return true, nil
	}
	if p.park(ctx, deadline) == parkCancelled {
		return false, ctx.Err()
	}
	return true, nil
}

func (s *Synchronizer) mustExclusive() ExclusivePolicy {
	if s.exclusive == nil {
		panicViolation(ErrUnsupportedMode, "%s: exclusive acquire", s)
	}
	return s.exclusive
}

func (s *Synchronizer) mustShared() SharedPolicy {
	if s.shared == nil {
		panicViolation(ErrUnsupportedMode, "%s: shared acquire", s)
	}
	return s.shared
}

func (s *Synchronizer) mustOwnership() OwnerPolicy {
	if s.ownership == nil {
		panicViolation(ErrUnsupportedMode, "%s: ownership query", s)
	}
	return s.ownership
}

// panicViolation aborts on a contract violation. The panic value wraps
// cause with a stack trace and matches it with errors.Is.
func panicViolation(cause error, format string, args ...any) {
	err := errors.Wrapf(cause, format, args...)
	logf("%v", err)
	panic(err)
}
