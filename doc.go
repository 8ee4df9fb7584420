// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package qsync provides a framework for blocking synchronizers built on
// a lock-free FIFO wait queue.
//
// A lock, semaphore, or latch is defined by a small policy that reads and
// CASes a single state word. The framework supplies the rest:
//
//   - Wait queue: lock-free doubly linked FIFO of waiting goroutines
//   - Parking: block and wake goroutines without losing early wakeups
//   - Cancellation: context- and deadline-bounded acquires that unlink
//     themselves without corrupting the queue
//   - Conditions: wait queues that hand signalled waiters back to the
//     main queue
//
// # Quick Start
//
// Reference primitives (ready to use):
//
//	m := qsync.NewMutex()          // Reentrant, barging
//	m := qsync.NewFairMutex()      // Reentrant, FIFO
//	sem := qsync.NewSemaphore(8)   // Counting
//	l := qsync.NewLatch(3)         // Count-down
//	rw := qsync.NewRWMutex()       // Reader/writer
//
// Custom synchronizers from a policy:
//
//	s := qsync.NewSynchronizer(policy)
//	s := qsync.New(policy).Name("pool").Spins(16).Build()
//
// # Writing a Policy
//
// A policy implements [ExclusivePolicy], [SharedPolicy], or both. The
// framework calls it with the owning [Synchronizer]; the policy uses
// [Synchronizer.State], [Synchronizer.SetState], and
// [Synchronizer.CompareAndSetState] to decide.
//
// Binary latch (opens once, wakes everyone):
//
//	type gate struct{}
//
//	func (gate) TryAcquireShared(s *qsync.Synchronizer, _ int64) int64 {
//	    if s.State() != 0 {
//	        return 1 // Open: succeed and wake the next shared waiter
//	    }
//	    return -1
//	}
//
//	func (gate) TryReleaseShared(s *qsync.Synchronizer, _ int64) bool {
//	    s.SetState(1)
//	    return true
//	}
//
//	g := qsync.NewSynchronizer(gate{})
//	go func() { g.AcquireShared(1); work() }()
//	g.ReleaseShared(1)
//
// Implement [OwnerPolicy] as well to support [Condition]. Calling an
// operation for a mode the policy does not implement panics with
// [ErrUnsupportedMode].
//
// # Acquire Variants
//
// Each mode has four acquire forms:
//
//	Acquire(arg)                      // Blocks; ignores cancellation
//	AcquireContext(ctx, arg)          // Blocks; returns ctx.Err() if ctx is done
//	TryAcquireFor(ctx, arg, d)        // Blocks up to d; false on timeout
//	TryAcquire(arg)                   // Never blocks; ErrWouldBlock on failure
//
// The shared forms are AcquireShared, AcquireSharedContext,
// TryAcquireSharedFor, and TryAcquireShared.
//
// An abandoned acquire (timeout or cancelled context) cancels its queue
// node before returning. Cancelled nodes are skipped by every other
// goroutine and unlinked opportunistically, so any number of concurrent
// cancellations leave the queue usable.
//
// # Ordering
//
// The wait queue is FIFO, but a policy may let an arriving goroutine
// succeed on its first attempt while others are queued (barging). A fair
// policy refuses when [Synchronizer.HasQueuedPredecessors] is true, which
// makes acquisition order equal enqueue order.
//
// Shared acquires propagate: when a shared waiter succeeds and the policy
// reports spare capacity, the next shared waiter is woken at once. A run
// of queued readers therefore wakes as a chain, stopping at the first
// exclusive waiter.
//
// # Conditions
//
//	m := qsync.NewMutex()
//	ready := m.NewCond()
//
//	// Waiter
//	m.Lock()
//	for !done {
//	    if err := ready.Await(ctx); err != nil {
//	        m.Unlock()
//	        return err
//	    }
//	}
//	m.Unlock()
//
//	// Signaller
//	m.Lock()
//	done = true
//	ready.Signal()
//	m.Unlock()
//
// Await releases every hold the caller has (reentrant holds included),
// and restores the same hold count before returning. Await, Signal, and
// SignalAll panic with [ErrNotOwner] unless the caller holds the lock.
//
// # Cancellation
//
// Cancellation is driven by [context.Context]. The uninterruptible forms
// (Acquire, AcquireShared, AwaitUninterruptibly) ignore it. The others
// return ctx.Err() when the context is done before the operation
// completes. If a condition wait is cancelled after a signal already
// moved it to the wait queue, the signal wins: Await reacquires and
// returns nil, and the context remains done for the caller to inspect.
//
// # Error Handling
//
// Non-blocking attempts return [ErrWouldBlock], sourced from
// [code.hybscloud.com/iox]:
//
//	backoff := iox.Backoff{}
//	for qsync.IsWouldBlock(s.TryAcquire(1)) {
//	    backoff.Wait()
//	}
//
// Contract violations (unlocking a lock the caller does not own, waiting
// on a condition without the lock, unsupported modes, hold count
// overflow) panic. The panic value is an error carrying a stack trace
// that matches the sentinel with errors.Is:
//
//	defer func() {
//	    if err, ok := recover().(error); ok && errors.Is(err, qsync.ErrNotOwner) {
//	        // ...
//	    }
//	}()
//
// # Goroutine Identity
//
// Ownership, fairness, and queue inspection identify goroutines by their
// runtime id. [Synchronizer.QueuedGoroutines] and friends return those
// ids. Inspection results are snapshots and may be stale on return.
//
// # Observability
//
// [SetLogger] and [SetDebug] route diagnostics to a *log.Logger (or any
// type with an Output method). [CollectStats] enables process-wide
// counters read with [GetStats].
//
// # Race Detection
//
// The queue publishes plain fields (condition links, parker pool slots)
// through atomix operations with acquire-release ordering. The race
// detector cannot observe that ordering and may report false positives,
// so the parker pool is disabled under -race and the heaviest concurrent
// tests are skipped there. See [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering, [code.hybscloud.com/spin] for CPU pause
// in retry loops, [code.hybscloud.com/iox] for semantic errors,
// [github.com/pkg/errors] for contract violation stacks, and
// [golang.org/x/sys/cpu] for cache line padding.
package qsync
