// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import "code.hybscloud.com/spin"

// enq appends n at the tail of the wait queue and returns its predecessor.
//
// The queue is created lazily: the first contended acquire installs a
// sentinel head, which is also the initial tail. n.prev is written before
// the tail CAS so that any node reachable from tail has a valid prev;
// pred.next is only linked after the CAS succeeds.
func (s *Synchronizer) enq(n *node) *node {
	sw := spin.Wait{}
	for {
		t := s.tail.Load()
		if t == nil {
			h := newSentinel()
			if s.head.CompareAndSwap(nil, h) {
				s.tail.Store(h)
			}
			continue
		}
		n.prev.Store(t)
		if s.tail.CompareAndSwap(t, n) {
			t.next.Store(n)
			stats.enqueued.Add(1)
			return t
		}
		sw.Once()
	}
}

// addWaiter queues a new node for the goroutine owning p.
func (s *Synchronizer) addWaiter(mode Mode, p *parker) *node {
	n := newWaiterNode(mode, p)
	s.enq(n)
	return n
}

// setHead makes n the head after its goroutine acquired. Only that
// goroutine calls setHead, so plain stores suffice.
func (s *Synchronizer) setHead(n *node) {
	s.head.Store(n)
	n.waiter.Store(nil)
	n.prev.Store(nil)
}

// unparkSuccessor wakes the nearest non-cancelled successor of n.
//
// If next is missing or cancelled the successor is found by walking prev
// from tail, which sees every node whose enqueue CAS has completed.
func (s *Synchronizer) unparkSuccessor(n *node) {
	if ws := n.status.LoadAcquire(); ws < 0 {
		n.status.CompareAndSwapAcqRel(ws, statusInitial)
	}

	succ := n.next.Load()
	if succ == nil || succ.status.LoadAcquire() > 0 {
		succ = nil
		for t := s.tail.Load(); t != nil && t != n; t = t.prev.Load() {
			if t.status.LoadAcquire() <= 0 {
				succ = t
			}
		}
	}
	if succ != nil {
		succ.unpark()
	}
}

// shouldParkAfterFailedAcquire prepares n to park behind pred.
//
// It returns true only once pred carries SIGNAL, which commits pred's
// release or cancel path to unpark n. Otherwise it skips cancelled
// predecessors or sets SIGNAL and returns false so the caller retries the
// acquire once more before blocking.
func (s *Synchronizer) shouldParkAfterFailedAcquire(pred, n *node) bool {
	ws := pred.status.LoadAcquire()
	if ws == statusSignal {
		return true
	}
	if ws > 0 {
		// The head is never cancelled, so this terminates.
		for pred.status.LoadAcquire() > 0 {
			pred = pred.prev.Load()
			n.prev.Store(pred)
		}
		pred.next.Store(n)
	} else {
		// INITIAL or PROPAGATE. The caller retries before parking.
		pred.status.CompareAndSwapAcqRel(ws, statusSignal)
	}
	return false
}

// cancelAcquire abandons a queued acquire.
//
// Other goroutines skip n once its status is CANCELLED, so unlinking is
// only needed for promptness: n is dropped from the tail if it is last,
// pred.next is repaired when pred will still wake its successor, and
// otherwise the successor is woken directly so it can repair its own links.
func (s *Synchronizer) cancelAcquire(n *node) {
	if n == nil {
		return
	}
	n.waiter.Store(nil)

	pred := n.prev.Load()
	for pred.status.LoadAcquire() > 0 {
		pred = pred.prev.Load()
		n.prev.Store(pred)
	}
	predNext := pred.next.Load()

	n.status.StoreRelease(statusCancelled)
	stats.cancelled.Add(1)
	debugf("qsync: %s: cancelled %s acquire", s, n.mode)

	if s.tail.CompareAndSwap(n, pred) {
		pred.next.CompareAndSwap(predNext, nil)
		return
	}

	ws := pred.status.LoadAcquire()
	if pred != s.head.Load() &&
		(ws == statusSignal || (ws <= 0 && pred.status.CompareAndSwapAcqRel(ws, statusSignal))) &&
		pred.waiter.Load() != nil {
		if next := n.next.Load(); next != nil && next.status.LoadAcquire() <= 0 {
			pred.next.CompareAndSwap(predNext, next)
		}
	} else {
		s.unparkSuccessor(n)
	}

	n.next.Store(n)
}

// isOnSyncQueue reports whether a node that started on a condition queue
// has been moved to the wait queue.
func (s *Synchronizer) isOnSyncQueue(n *node) bool {
	if n.status.LoadAcquire() == statusCondition || n.prev.Load() == nil {
		return false
	}
	if n.next.Load() != nil {
		return true
	}
	// prev can be set while the tail CAS is still failing, so confirm
	// by walking back from tail.
	return s.findNodeFromTail(n)
}

func (s *Synchronizer) findNodeFromTail(n *node) bool {
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t == n {
			return true
		}
	}
	return false
}

// transferForSignal moves a condition node to the wait queue.
// It returns false if the node was cancelled before the signal.
func (s *Synchronizer) transferForSignal(n *node) bool {
	if !n.status.CompareAndSwapAcqRel(statusCondition, statusInitial) {
		return false
	}

	pred := s.enq(n)
	stats.transfers.Add(1)
	debugf("qsync: %s: transferred condition waiter", s)

	// If pred is cancelled or refuses SIGNAL, wake n so it resyncs its
	// predecessor itself; a spurious wakeup is harmless.
	ws := pred.status.LoadAcquire()
	if ws > 0 || !pred.status.CompareAndSwapAcqRel(ws, statusSignal) {
		n.unpark()
	}
	return true
}

// transferAfterCancelledWait moves a condition node to the wait queue
// after its wait was cancelled or timed out.
//
// It returns true if the cancellation happened before a signal. If a
// signal won the race the transfer is already in progress; the caller
// spins until enq completes and reports the wait as signalled.
func (s *Synchronizer) transferAfterCancelledWait(n *node) bool {
	if n.status.CompareAndSwapAcqRel(statusCondition, statusInitial) {
		s.enq(n)
		return true
	}
	sw := spin.Wait{}
	for !s.isOnSyncQueue(n) {
		sw.Once()
	}
	return false
}
