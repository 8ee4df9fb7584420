// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

// ExclusivePolicy defines what an exclusive acquire and release mean for a
// specific lock.
//
// The framework calls the policy with the synchronizer it belongs to so
// the policy can read and CAS the state word. A policy must not block and
// must not call back into blocking synchronizer operations.
//
// Example (binary, non-reentrant):
//
//	type binary struct{}
//
//	func (binary) TryAcquire(s *qsync.Synchronizer, _ int64) bool {
//	    return s.CompareAndSetState(0, 1)
//	}
//
//	func (binary) TryRelease(s *qsync.Synchronizer, _ int64) bool {
//	    s.SetState(0)
//	    return true
//	}
type ExclusivePolicy interface {
	// TryAcquire attempts to acquire in exclusive mode.
	// Returns true on success.
	TryAcquire(s *Synchronizer, arg int64) bool

	// TryRelease attempts to release in exclusive mode.
	// Returns true if the synchronizer is now fully released and a
	// waiting goroutine may be able to acquire.
	TryRelease(s *Synchronizer, arg int64) bool
}

// SharedPolicy defines what a shared acquire and release mean for a
// semaphore, latch, or the read side of a read-write lock.
type SharedPolicy interface {
	// TryAcquireShared attempts to acquire in shared mode.
	//
	// A negative result is failure. Zero is success with no capacity left
	// for further shared acquires. A positive result is success where a
	// subsequent shared acquire may also succeed, so the wakeup propagates
	// to the next shared waiter.
	TryAcquireShared(s *Synchronizer, arg int64) int64

	// TryReleaseShared attempts to release in shared mode.
	// Returns true if a waiting acquire (shared or exclusive) may now
	// succeed.
	TryReleaseShared(s *Synchronizer, arg int64) bool
}

// OwnerPolicy reports exclusive ownership by the calling goroutine.
//
// A policy must implement OwnerPolicy to support [Condition]. The
// condition protocol only calls it from the goroutine under test.
type OwnerPolicy interface {
	IsHeldExclusively(s *Synchronizer) bool
}

// Mode is the acquire mode of a queued waiter.
type Mode uint8

const (
	// Exclusive waiters are woken one at a time.
	Exclusive Mode = iota
	// Shared waiters wake their shared successors in a chain.
	Shared
)

func (m Mode) String() string {
	switch m {
	case Exclusive:
		return "exclusive"
	case Shared:
		return "shared"
	default:
		return "unknown"
	}
}
