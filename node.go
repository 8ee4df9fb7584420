// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// Node wait status values.
//
// Positive means cancelled, so "status > 0" is the skip test used by
// every traversal. Non-negative statuses other than cancelled are
// INITIAL only.
const (
	statusInitial   int32 = 0
	statusCancelled int32 = 1  // Terminal: never relinked
	statusSignal    int32 = -1 // Successor must be unparked on release or cancel
	statusCondition int32 = -2 // Parked on a condition queue
	statusPropagate int32 = -3 // Shared release must keep propagating
)

// node is one queued acquire attempt.
//
// prev is authoritative: it is set before the node is published as tail.
// next is a hint set after the tail CAS and may lag or be nil while the
// node is queued; traversals that need certainty walk prev from tail.
//
// A node is on the wait queue, on one condition queue, or on neither,
// never both. The two queues use separate links: prev/next for the wait
// queue (atomic, lock-free), nextCond for the condition queue (plain,
// touched only by the exclusive owner).
type node struct {
	status atomix.Int32
	prev   atomic.Pointer[node]
	next   atomic.Pointer[node]
	waiter atomic.Pointer[parker] // nil for sentinels and once no longer needed

	mode     Mode
	nextCond *node
}

// newSentinel returns a head node. It never carries a waiter.
func newSentinel() *node {
	return &node{}
}

func newWaiterNode(mode Mode, p *parker) *node {
	n := &node{mode: mode}
	n.waiter.Store(p)
	return n
}

func newConditionNode(p *parker) *node {
	n := &node{mode: Exclusive}
	n.status.StoreRelaxed(statusCondition)
	n.waiter.Store(p)
	return n
}

func (n *node) isShared() bool {
	return n.mode == Shared
}

// predecessor returns prev of a queued node. Only the head has no
// predecessor, and the head never runs an acquire loop.
func (n *node) predecessor() *node {
	p := n.prev.Load()
	if p == nil {
		panic("qsync: queued node without predecessor")
	}
	return p
}

// unpark wakes the node's goroutine, if it still has one.
func (n *node) unpark() {
	if p := n.waiter.Load(); p != nil {
		p.unpark()
	}
}

// waiterID returns the goroutine id of the node's waiter, or 0.
func (n *node) waiterID() int64 {
	if p := n.waiter.Load(); p != nil {
		return p.id.LoadAcquire()
	}
	return 0
}
