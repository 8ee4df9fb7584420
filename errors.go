// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates a non-blocking acquire attempt failed.
//
// Returned by [Synchronizer.TryAcquire] and [Synchronizer.TryAcquireShared]
// when the policy refuses the acquire right now. It is a control flow
// signal, not a failure: the caller may retry, back off, or fall back to a
// blocking acquire.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
//
// Example:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := s.TryAcquire(1)
//	    if err == nil {
//	        break
//	    }
//	    if !qsync.IsWouldBlock(err) {
//	        return err
//	    }
//	    backoff.Wait()
//	}
var ErrWouldBlock = iox.ErrWouldBlock

// Contract violations. These are never returned; they are the root cause
// of panics raised when a caller or policy breaks the framework contract.
// Recover and match with errors.Is.
var (
	// ErrNotOwner reports a release, await, or signal by a goroutine
	// that does not exclusively own the synchronizer.
	ErrNotOwner = errors.New("qsync: not owner")

	// ErrUnsupportedMode reports an exclusive or shared operation on a
	// synchronizer whose policy does not implement that mode.
	ErrUnsupportedMode = errors.New("qsync: unsupported acquire mode")

	// ErrHoldOverflow reports a reentrant hold count that would overflow.
	ErrHoldOverflow = errors.New("qsync: maximum hold count exceeded")

	// ErrNegativeCount reports a negative permit or latch count.
	ErrNegativeCount = errors.New("qsync: negative count")
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
