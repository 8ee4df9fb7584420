// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"context"
	"time"

	"code.hybscloud.com/spin"
)

// Condition is a condition variable bound to one [Synchronizer].
//
// Every method requires the calling goroutine to hold the synchronizer
// exclusively and panics with [ErrNotOwner] otherwise. Waiters are
// signalled in FIFO order. A signal does not hand over ownership: the
// signalled waiter is moved to the synchronizer's wait queue and competes
// for it like any other waiter.
//
// Example:
//
//	m := qsync.NewMutex()
//	notEmpty := m.NewCond()
//
//	m.Lock()
//	for len(items) == 0 {
//	    notEmpty.AwaitUninterruptibly()
//	}
//	item := items[0]
//	m.Unlock()
type Condition struct {
	s *Synchronizer

	// Guarded by exclusive ownership of s.
	firstWaiter *node
	lastWaiter  *node
}

// NewCondition creates a condition bound to s.
// Panics with [ErrUnsupportedMode] unless the policy implements both
// [ExclusivePolicy] and [OwnerPolicy].
func (s *Synchronizer) NewCondition() *Condition {
	s.mustExclusive()
	s.mustOwnership()
	return &Condition{s: s}
}

// Await releases the synchronizer, blocks until signalled, and reacquires
// it with the hold count it had on entry.
//
// If ctx is done before a signal arrives, Await reacquires and returns
// ctx.Err(). If a signal won the race, Await returns nil and ctx stays
// done for the caller to observe.
func (c *Condition) Await(ctx context.Context) error {
	_, err := c.await(ctx, time.Time{})
	return err
}

// AwaitUninterruptibly is Await without cancellation.
func (c *Condition) AwaitUninterruptibly() {
	c.await(nil, time.Time{})
}

// AwaitTimeout is Await bounded by d. It returns the time left before the
// deadline; zero or negative means the wait timed out.
func (c *Condition) AwaitTimeout(ctx context.Context, d time.Duration) (time.Duration, error) {
	deadline := time.Now().Add(d)
	_, err := c.await(ctx, deadline)
	return time.Until(deadline), err
}

// AwaitUntil is Await bounded by deadline. It returns false if the
// deadline passed before a signal.
func (c *Condition) AwaitUntil(ctx context.Context, deadline time.Time) (bool, error) {
	return c.await(ctx, deadline)
}

// Signal moves the longest-waiting goroutine, if any, to the wait queue.
func (c *Condition) Signal() {
	c.checkOwner("signal")
	stats.signals.Add(1)
	for first := c.firstWaiter; first != nil; first = c.firstWaiter {
		c.firstWaiter = first.nextCond
		if c.firstWaiter == nil {
			c.lastWaiter = nil
		}
		first.nextCond = nil
		if c.s.transferForSignal(first) {
			return
		}
	}
}

// SignalAll moves every waiting goroutine to the wait queue, keeping
// their order.
func (c *Condition) SignalAll() {
	c.checkOwner("signal")
	stats.signals.Add(1)
	first := c.firstWaiter
	c.firstWaiter, c.lastWaiter = nil, nil
	for first != nil {
		next := first.nextCond
		first.nextCond = nil
		c.s.transferForSignal(first)
		first = next
	}
}

// await is the wait protocol shared by the Await variants. A nil ctx is
// never done; a zero deadline never passes. Reports whether the wait
// ended by signal.
func (c *Condition) await(ctx context.Context, deadline time.Time) (bool, error) {
	c.checkOwner("await")
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}

	p := acquireParker()
	defer releaseParker(p)
	n := c.addConditionWaiter(p)
	saved := c.s.fullyRelease(n)

	var cancelled, timedOut bool
	sw := spin.Wait{}
	for !c.s.isOnSyncQueue(n) {
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				timedOut = c.s.transferAfterCancelledWait(n)
				break
			}
			if remaining < spinForTimeoutThreshold {
				sw.Once()
				continue
			}
		}
		if p.park(ctx, deadline) == parkCancelled {
			cancelled = c.s.transferAfterCancelledWait(n)
			break
		}
	}

	c.s.acquireQueued(nil, n, saved, time.Time{})

	if n.nextCond != nil || cancelled || timedOut {
		c.unlinkCancelledWaiters()
	}
	if cancelled {
		debugf("qsync: %s: condition wait cancelled", c.s)
		return false, ctx.Err()
	}
	return !timedOut, nil
}

// addConditionWaiter appends a CONDITION node for the goroutine owning p.
func (c *Condition) addConditionWaiter(p *parker) *node {
	t := c.lastWaiter
	if t != nil && t.status.LoadAcquire() != statusCondition {
		c.unlinkCancelledWaiters()
		t = c.lastWaiter
	}
	n := newConditionNode(p)
	if t == nil {
		c.firstWaiter = n
	} else {
		t.nextCond = n
	}
	c.lastWaiter = n
	return n
}

// unlinkCancelledWaiters drops every node that is no longer CONDITION:
// those whose wait ended by cancellation or timeout before a signal.
func (c *Condition) unlinkCancelledWaiters() {
	var trail *node
	for t := c.firstWaiter; t != nil; {
		next := t.nextCond
		if t.status.LoadAcquire() != statusCondition {
			t.nextCond = nil
			if trail == nil {
				c.firstWaiter = next
			} else {
				trail.nextCond = next
			}
			if next == nil {
				c.lastWaiter = trail
			}
		} else {
			trail = t
		}
		t = next
	}
}

func (c *Condition) checkOwner(op string) {
	if !c.s.ownership.IsHeldExclusively(c.s) {
		panicViolation(ErrNotOwner, "%s: condition %s", c.s, op)
	}
}

// fullyRelease releases every hold and returns the state to restore.
// A failed release marks n cancelled so the condition queue drops it.
func (s *Synchronizer) fullyRelease(n *node) int64 {
	saved := s.State()
	ok := false
	defer func() {
		if !ok {
			n.status.StoreRelease(statusCancelled)
			n.waiter.Store(nil)
		}
	}()
	if !s.Release(saved) {
		panicViolation(ErrNotOwner, "%s: release of %d holds failed", s, saved)
	}
	ok = true
	return saved
}

func (c *Condition) hasWaiters() bool {
	for w := c.firstWaiter; w != nil; w = w.nextCond {
		if w.status.LoadAcquire() == statusCondition {
			return true
		}
	}
	return false
}

func (c *Condition) waitQueueLength() int {
	n := 0
	for w := c.firstWaiter; w != nil; w = w.nextCond {
		if w.status.LoadAcquire() == statusCondition {
			n++
		}
	}
	return n
}

func (c *Condition) waitingGoroutines() []int64 {
	var ids []int64
	for w := c.firstWaiter; w != nil; w = w.nextCond {
		if w.status.LoadAcquire() == statusCondition {
			if id := w.waiterID(); id != 0 {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
