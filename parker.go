// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"context"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/qsync/internal/goid"
)

// parkResult is why park returned.
type parkResult uint8

const (
	parkWoken parkResult = iota
	parkTimedOut
	parkCancelled
)

// parker blocks one goroutine until a matching unpark.
//
// The permit channel holds at most one token: an unpark that happens
// before park is kept and consumed by the next park, and repeated unparks
// collapse into one. Every caller of park re-checks its wait condition in
// a loop, so a stale token only costs a spurious wakeup.
type parker struct {
	id     atomix.Int64 // Goroutine id of the current owner, 0 when pooled
	permit chan struct{}
}

func newParker() *parker {
	return &parker{permit: make(chan struct{}, 1)}
}

// acquireParker returns a parker bound to the calling goroutine.
func acquireParker() *parker {
	p := parkers.get()
	p.id.StoreRelease(goid.Get())
	return p
}

// releaseParker returns p to the free list. The caller must be the owning
// goroutine and p must no longer be reachable from a live node.
func releaseParker(p *parker) {
	p.id.StoreRelease(0)
	select {
	case <-p.permit:
	default:
	}
	parkers.put(p)
}

// unpark makes the permit available.
func (p *parker) unpark() {
	select {
	case p.permit <- struct{}{}:
		stats.unparks.Add(1)
	default:
	}
}

// park blocks until the permit is available, ctx is done, or deadline
// passes. A nil ctx is never done. A zero deadline never passes.
func (p *parker) park(ctx context.Context, deadline time.Time) parkResult {
	stats.parks.Add(1)
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	if deadline.IsZero() {
		select {
		case <-p.permit:
			return parkWoken
		case <-done:
			return parkCancelled
		}
	}

	d := time.Until(deadline)
	if d <= 0 {
		return parkTimedOut
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.permit:
		return parkWoken
	case <-done:
		return parkCancelled
	case <-t.C:
		return parkTimedOut
	}
}
