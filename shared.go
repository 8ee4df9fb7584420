// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"context"
	"time"

	"code.hybscloud.com/spin"
)

// AcquireShared acquires in shared mode, ignoring cancellation.
func (s *Synchronizer) AcquireShared(arg int64) {
	if s.mustShared().TryAcquireShared(s, arg) >= 0 {
		return
	}
	s.acquireShared(nil, arg, time.Time{})
}

// AcquireSharedContext acquires in shared mode, aborting if ctx is done.
// Returns ctx.Err() if the acquire was abandoned.
func (s *Synchronizer) AcquireSharedContext(ctx context.Context, arg int64) error {
	sh := s.mustShared()
	if err := ctx.Err(); err != nil {
		return err
	}
	if sh.TryAcquireShared(s, arg) >= 0 {
		return nil
	}
	_, err := s.acquireShared(ctx, arg, time.Time{})
	return err
}

// TryAcquireSharedFor acquires in shared mode, giving up after d.
// Results follow [Synchronizer.TryAcquireFor].
func (s *Synchronizer) TryAcquireSharedFor(ctx context.Context, arg int64, d time.Duration) (bool, error) {
	sh := s.mustShared()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if sh.TryAcquireShared(s, arg) >= 0 {
		return true, nil
	}
	if d <= 0 {
		return false, nil
	}
	return s.acquireShared(ctx, arg, time.Now().Add(d))
}

// TryAcquireShared makes a single non-blocking shared attempt.
// Returns ErrWouldBlock if the policy refuses.
func (s *Synchronizer) TryAcquireShared(arg int64) error {
	if s.mustShared().TryAcquireShared(s, arg) >= 0 {
		return nil
	}
	return ErrWouldBlock
}

// ReleaseShared releases in shared mode.
// Returns the policy's verdict; on true, queued waiters are woken.
func (s *Synchronizer) ReleaseShared(arg int64) bool {
	if !s.mustShared().TryReleaseShared(s, arg) {
		return false
	}
	s.releaseShared()
	return true
}

// acquireShared queues the calling goroutine in shared mode and runs the
// shared acquire loop.
func (s *Synchronizer) acquireShared(ctx context.Context, arg int64, deadline time.Time) (acquired bool, err error) {
	p := acquireParker()
	defer releaseParker(p)
	n := s.addWaiter(Shared, p)

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
		if pred == s.head.Load() {
			if r := s.shared.TryAcquireShared(s, arg); r >= 0 {
				s.setHeadAndPropagate(n, r)
				pred.next.Store(nil)
				failed = false
				return true, nil
			}
		}
		ok, err := s.waitTurn(ctx, pred, n, p, deadline, &spun, &sw)
		if !ok {
			if err == nil {
				debugf("qsync: %s: shared acquire timed out", s)
			}
			return false, err
		}
	}
}

// setHeadAndPropagate makes n the head after a shared acquire and keeps
// waking if more shared acquires may succeed.
//
// Propagation happens when the policy reported spare capacity, or when the
// old or new head carries a negative status (SIGNAL or PROPAGATE left by a
// concurrent release). Either may cause an unneeded wakeup, which only
// costs the woken goroutine a retry. The chain stops at an exclusive
// successor; a nil next is treated as possibly shared.
func (s *Synchronizer) setHeadAndPropagate(n *node, propagate int64) {
	old := s.head.Load()
	s.setHead(n)

	if propagate > 0 || old == nil || old.status.LoadAcquire() < 0 || headPending(s.head.Load()) {
		if next := n.next.Load(); next == nil || next.isShared() {
			s.releaseShared()
		}
	}
}

func headPending(h *node) bool {
	return h == nil || h.status.LoadAcquire() < 0
}

// releaseShared wakes the head's successor, or marks the head PROPAGATE
// so a concurrent shared acquire that is becoming head keeps the chain
// going. Loops while the head changes underneath.
func (s *Synchronizer) releaseShared() {
	for {
		h := s.head.Load()
		if h != nil && h != s.tail.Load() {
			ws := h.status.LoadAcquire()
			if ws == statusSignal {
				if !h.status.CompareAndSwapAcqRel(statusSignal, statusInitial) {
					continue
				}
				s.unparkSuccessor(h)
			} else if ws == statusInitial && !h.status.CompareAndSwapAcqRel(statusInitial, statusPropagate) {
				continue
			}
		}
		if h == s.head.Load() {
			return
		}
	}
}
