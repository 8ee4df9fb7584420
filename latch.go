// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"context"
	"time"
)

// Latch lets goroutines wait until a count reaches zero.
//
// The state word is the remaining count. Once it reaches zero every
// current and future Wait returns immediately; the latch cannot be
// reset.
type Latch struct {
	s *Synchronizer
}

// NewLatch creates a latch that opens after count calls to CountDown.
func NewLatch(count int64) *Latch {
	l := &Latch{s: New(latchPolicy{}).Name("qsync.Latch").Build()}
	checkCount(l.s, count)
	l.s.SetState(count)
	return l
}

// CountDown decrements the count, opening the latch when it reaches zero.
// Calls after the latch opened have no effect.
func (l *Latch) CountDown() {
	l.s.ReleaseShared(1)
}

// Wait blocks until the latch is open.
func (l *Latch) Wait() {
	l.s.AcquireShared(1)
}

// WaitContext blocks until the latch is open or ctx is done.
func (l *Latch) WaitContext(ctx context.Context) error {
	return l.s.AcquireSharedContext(ctx, 1)
}

// WaitFor blocks until the latch is open, giving up after d. Returns
// false on timeout.
func (l *Latch) WaitFor(ctx context.Context, d time.Duration) (bool, error) {
	return l.s.TryAcquireSharedFor(ctx, 1, d)
}

// Count returns the remaining count.
func (l *Latch) Count() int64 {
	return l.s.State()
}

func (l *Latch) String() string {
	return l.s.String()
}

type latchPolicy struct{}

func (latchPolicy) TryAcquireShared(s *Synchronizer, _ int64) int64 {
	if s.State() == 0 {
		return 1
	}
	return -1
}

func (latchPolicy) TryReleaseShared(s *Synchronizer, _ int64) bool {
	for {
		c := s.State()
		if c == 0 {
			return false
		}
		if s.CompareAndSetState(c, c-1) {
			return c == 1
		}
	}
}
