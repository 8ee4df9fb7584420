// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"fmt"

	"code.hybscloud.com/qsync/internal/goid"
)

// Queue inspection.
//
// Results are snapshots of a structure that changes concurrently: a
// goroutine reported as queued may acquire or give up at any moment.
// They are meant for monitoring, tests, and policy decisions that
// tolerate staleness (such as fairness checks), not for synchronization.

// HasQueuedGoroutines reports whether any goroutine may be waiting.
func (s *Synchronizer) HasQueuedGoroutines() bool {
	return s.head.Load() != s.tail.Load()
}

// HasContended reports whether any acquire has ever had to queue.
func (s *Synchronizer) HasContended() bool {
	return s.head.Load() != nil
}

// FirstQueuedGoroutine returns the id of the longest-waiting goroutine,
// or 0 if none is queued.
func (s *Synchronizer) FirstQueuedGoroutine() int64 {
	if s.head.Load() == s.tail.Load() {
		return 0
	}
	// Fast path: the head's successor, if its links are settled.
	for range 2 {
		h := s.head.Load()
		if h == nil {
			break
		}
		if n := h.next.Load(); n != nil && n.prev.Load() == s.head.Load() {
			if id := n.waiterID(); id != 0 {
				return id
			}
		}
	}
	// next may lag; walk back from tail and keep the earliest waiter.
	var first int64
	for t := s.tail.Load(); t != nil && t != s.head.Load(); t = t.prev.Load() {
		if id := t.waiterID(); id != 0 {
			first = id
		}
	}
	return first
}

// IsQueued reports whether the goroutine with the given id is queued.
func (s *Synchronizer) IsQueued(id int64) bool {
	if id == 0 {
		return false
	}
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t.waiterID() == id {
			return true
		}
	}
	return false
}

// HasQueuedPredecessors reports whether some other goroutine has been
// waiting longer than the caller.
//
// A fair policy calls this from TryAcquire and fails when it returns true.
func (s *Synchronizer) HasQueuedPredecessors() bool {
	// Read tail before head: if head's successor is being linked, tail
	// has already moved.
	t := s.tail.Load()
	h := s.head.Load()
	if h == t {
		return false
	}
	n := h.next.Load()
	if n == nil {
		return true
	}
	return n.waiterID() != goid.Get()
}

// ApparentlyFirstQueuedIsExclusive reports whether the first queued
// goroutine, if any, waits in exclusive mode.
//
// A read-write policy uses this to keep new readers from starving a
// queued writer.
func (s *Synchronizer) ApparentlyFirstQueuedIsExclusive() bool {
	h := s.head.Load()
	if h == nil {
		return false
	}
	n := h.next.Load()
	return n != nil && !n.isShared() && n.waiter.Load() != nil
}

// QueueLength returns an estimate of the number of queued goroutines.
func (s *Synchronizer) QueueLength() int {
	n := 0
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t.waiterID() != 0 {
			n++
		}
	}
	return n
}

// QueuedGoroutines returns the ids of queued goroutines, most recent
// first.
func (s *Synchronizer) QueuedGoroutines() []int64 {
	return s.queued(func(*node) bool { return true })
}

// ExclusiveQueuedGoroutines is QueuedGoroutines restricted to exclusive
// waiters.
func (s *Synchronizer) ExclusiveQueuedGoroutines() []int64 {
	return s.queued(func(n *node) bool { return !n.isShared() })
}

// SharedQueuedGoroutines is QueuedGoroutines restricted to shared waiters.
func (s *Synchronizer) SharedQueuedGoroutines() []int64 {
	return s.queued((*node).isShared)
}

func (s *Synchronizer) queued(match func(*node) bool) []int64 {
	var ids []int64
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if !match(t) {
			continue
		}
		if id := t.waiterID(); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsHeldExclusively reports whether the calling goroutine holds s
// exclusively. Panics with [ErrUnsupportedMode] unless the policy
// implements [OwnerPolicy].
func (s *Synchronizer) IsHeldExclusively() bool {
	return s.mustOwnership().IsHeldExclusively(s)
}

// Owns reports whether c was created by s.
func (s *Synchronizer) Owns(c *Condition) bool {
	return c.s == s
}

// HasWaiters reports whether any goroutine waits on c.
// The caller must hold s exclusively.
func (s *Synchronizer) HasWaiters(c *Condition) bool {
	s.checkCondition(c)
	return c.hasWaiters()
}

// WaitQueueLength returns an estimate of the number of goroutines waiting
// on c. The caller must hold s exclusively.
func (s *Synchronizer) WaitQueueLength(c *Condition) int {
	s.checkCondition(c)
	return c.waitQueueLength()
}

// WaitingGoroutines returns the ids of goroutines waiting on c, in signal
// order. The caller must hold s exclusively.
func (s *Synchronizer) WaitingGoroutines(c *Condition) []int64 {
	s.checkCondition(c)
	return c.waitingGoroutines()
}

func (s *Synchronizer) checkCondition(c *Condition) {
	if !s.Owns(c) {
		panicViolation(ErrNotOwner, "%s: condition belongs to another synchronizer", s)
	}
	c.checkOwner("inspect")
}

// String identifies the synchronizer and its current state.
func (s *Synchronizer) String() string {
	q := "empty"
	if s.HasQueuedGoroutines() {
		q = "nonempty"
	}
	name := s.name
	if name == "" {
		name = "synchronizer"
	}
	return fmt.Sprintf("%s[state = %d, %s queue]", name, s.State(), q)
}
