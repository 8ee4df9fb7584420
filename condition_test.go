// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/qsync"
)

// waitConditionWaiters waits until c has n waiters. Each probe takes m.
func waitConditionWaiters(t *testing.T, m *qsync.Mutex, c *qsync.Condition, n int) {
	t.Helper()
	retryWithTimeout(t, 5*time.Second, func() bool {
		m.Lock()
		defer m.Unlock()
		return m.Synchronizer().WaitQueueLength(c) == n
	}, "goroutines did not start waiting")
}

// =============================================================================
// Condition - Await and Signal
// =============================================================================

// TestConditionAwaitSignal checks that Await returns only after a signal
// and after the signaller released the lock, with the hold count restored.
func TestConditionAwaitSignal(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()

	var signalled atomix.Bool
	holds := make(chan int64)
	go func() {
		m.Lock()
		m.Lock()
		m.Lock()
		c.AwaitUninterruptibly()
		if !signalled.Load() {
			t.Error("Await returned before Signal")
		}
		holds <- m.HoldCount()
		m.Unlock()
		m.Unlock()
		m.Unlock()
	}()
	waitConditionWaiters(t, m, c, 1)

	m.Lock()
	signalled.Store(true)
	c.Signal()
	select {
	case <-holds:
		t.Fatal("Await returned while signaller holds the lock")
	case <-time.After(20 * time.Millisecond):
	}
	m.Unlock()

	select {
	case got := <-holds:
		if got != 3 {
			t.Fatalf("HoldCount after Await: got %d, want 3", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Await not woken by Signal")
	}
}

// TestConditionReleasesLock checks that a waiter gives up every hold while
// it waits.
func TestConditionReleasesLock(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Lock()
		m.Lock()
		c.AwaitUninterruptibly()
		m.Unlock()
		m.Unlock()
	}()
	waitConditionWaiters(t, m, c, 1)

	if !m.TryLock() {
		t.Fatal("TryLock while other goroutine waits on condition: got false")
	}
	if m.HoldCount() != 1 {
		t.Fatalf("HoldCount: got %d, want 1", m.HoldCount())
	}
	c.Signal()
	m.Unlock()
	waitDone(t, done, 5*time.Second, "waiter not woken")
}

func TestConditionSignalWithoutWaiters(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()

	m.Lock()
	c.Signal()
	c.SignalAll()
	if m.Synchronizer().HasWaiters(c) {
		t.Fatal("HasWaiters: got true on idle condition")
	}
	m.Unlock()
	if m.Synchronizer().HasQueuedGoroutines() {
		t.Fatal("signal without waiters queued something")
	}
}

// TestConditionSignalOrder checks that Signal wakes waiters one at a time
// in the order they started waiting.
func TestConditionSignalOrder(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()
	const n = 4

	order := make([]atomix.Int64, n)
	var pos atomix.Int64
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			c.AwaitUninterruptibly()
			order[pos.Add(1)-1].Store(int64(i))
			m.Unlock()
		}()
		waitConditionWaiters(t, m, c, i+1)
	}

	for i := range n {
		m.Lock()
		c.Signal()
		m.Unlock()
		retryWithTimeout(t, 5*time.Second, func() bool {
			return pos.Load() == int64(i+1)
		}, "signalled waiter did not run")
	}
	wg.Wait()

	for i := range n {
		if got := order[i].Load(); got != int64(i) {
			t.Fatalf("wake %d: got waiter %d, want %d", i, got, i)
		}
	}
}

// TestConditionSignalAllOrder checks that SignalAll transfers every
// waiter and that they reacquire in waiting order.
func TestConditionSignalAllOrder(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()
	const n = 5

	order := make([]atomix.Int64, n)
	var pos atomix.Int64
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			c.AwaitUninterruptibly()
			order[pos.Add(1)-1].Store(int64(i))
			m.Unlock()
		}()
		waitConditionWaiters(t, m, c, i+1)
	}

	m.Lock()
	ids := m.Synchronizer().WaitingGoroutines(c)
	if len(ids) != n {
		t.Fatalf("WaitingGoroutines: got %d ids, want %d", len(ids), n)
	}
	c.SignalAll()
	if m.Synchronizer().HasWaiters(c) {
		t.Fatal("HasWaiters after SignalAll: got true")
	}
	if got := m.Synchronizer().QueueLength(); got != n {
		t.Fatalf("QueueLength after SignalAll: got %d, want %d", got, n)
	}
	m.Unlock()
	wg.Wait()

	for i := range n {
		if got := order[i].Load(); got != int64(i) {
			t.Fatalf("reacquire %d: got waiter %d, want %d", i, got, i)
		}
	}
}

// =============================================================================
// Condition - Timeout and Cancellation
// =============================================================================

func TestConditionAwaitTimeout(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()

	m.Lock()
	m.Lock()
	remaining, err := c.AwaitTimeout(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("AwaitTimeout: %v", err)
	}
	if remaining > 0 {
		t.Fatalf("AwaitTimeout remaining: got %v, want <= 0", remaining)
	}
	if !m.IsHeldByCurrentGoroutine() || m.HoldCount() != 2 {
		t.Fatalf("after timeout: held %v, holds %d, want true, 2",
			m.IsHeldByCurrentGoroutine(), m.HoldCount())
	}
	if m.Synchronizer().WaitQueueLength(c) != 0 {
		t.Fatal("timed out waiter still on condition")
	}
	m.Unlock()
	m.Unlock()
}

func TestConditionAwaitUntil(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()

	m.Lock()
	ok, err := c.AwaitUntil(context.Background(), time.Now().Add(5*time.Millisecond))
	if ok || err != nil {
		t.Fatalf("AwaitUntil timeout: got (%v, %v), want (false, nil)", ok, err)
	}
	m.Unlock()

	result := make(chan bool, 1)
	go func() {
		m.Lock()
		ok, err := c.AwaitUntil(context.Background(), time.Now().Add(10*time.Second))
		if err != nil {
			t.Errorf("AwaitUntil: %v", err)
		}
		m.Unlock()
		result <- ok
	}()
	waitConditionWaiters(t, m, c, 1)

	m.Lock()
	c.Signal()
	m.Unlock()
	select {
	case ok := <-result:
		if !ok {
			t.Fatal("AwaitUntil with signal: got false, want true")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("AwaitUntil not woken by Signal")
	}
}

// TestConditionAwaitCancelled cancels a wait before any signal and checks
// that the waiter reacquires, reports the cancellation, and leaves the
// condition.
func TestConditionAwaitCancelled(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()
	ctx, cancel := context.WithCancel(context.Background())

	type outcome struct {
		err  error
		held bool
	}
	result := make(chan outcome, 1)
	go func() {
		m.Lock()
		err := c.Await(ctx)
		held := m.IsHeldByCurrentGoroutine()
		m.Unlock()
		result <- outcome{err, held}
	}()
	waitConditionWaiters(t, m, c, 1)
	cancel()

	select {
	case o := <-result:
		if !errors.Is(o.err, context.Canceled) {
			t.Fatalf("Await: got %v, want context.Canceled", o.err)
		}
		if !o.held {
			t.Fatal("Await returned without reacquiring")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Await not aborted by cancel")
	}

	m.Lock()
	if m.Synchronizer().HasWaiters(c) {
		t.Fatal("cancelled waiter still on condition")
	}
	m.Unlock()

	// Done context fails before releasing.
	m.Lock()
	if err := c.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Await(done ctx): got %v, want context.Canceled", err)
	}
	if m.HoldCount() != 1 {
		t.Fatalf("HoldCount: got %d, want 1", m.HoldCount())
	}
	m.Unlock()
}

// TestConditionCancelAfterSignal cancels a waiter that Signal has already
// moved to the wait queue. The signal wins: Await returns nil holding the
// lock and ctx stays done.
func TestConditionCancelAfterSignal(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()
	ctx, cancel := context.WithCancel(context.Background())

	type outcome struct {
		err    error
		ctxErr error
		holds  int64
	}
	result := make(chan outcome, 1)
	go func() {
		m.Lock()
		m.Lock()
		err := c.Await(ctx)
		o := outcome{err, ctx.Err(), m.HoldCount()}
		m.Unlock()
		m.Unlock()
		result <- o
	}()
	waitConditionWaiters(t, m, c, 1)

	m.Lock()
	c.Signal()
	cancel()
	if n := m.Synchronizer().QueueLength(); n != 1 {
		t.Fatalf("QueueLength after Signal: got %d, want 1", n)
	}
	m.Unlock()

	select {
	case o := <-result:
		if o.err != nil {
			t.Fatalf("Await: got %v, want nil", o.err)
		}
		if !errors.Is(o.ctxErr, context.Canceled) {
			t.Fatalf("ctx.Err after Await: got %v, want context.Canceled", o.ctxErr)
		}
		if o.holds != 2 {
			t.Fatalf("HoldCount after Await: got %d, want 2", o.holds)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("signalled waiter never reacquired")
	}

	m.Lock()
	if m.Synchronizer().HasWaiters(c) {
		t.Fatal("signalled waiter still on condition")
	}
	m.Unlock()
}

// TestConditionCancelledAmongWaiters cancels one waiter in the middle of
// the condition queue and checks that Signal skips it.
func TestConditionCancelledAmongWaiters(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()
	ctx, cancel := context.WithCancel(context.Background())

	var woken atomix.Int32
	errc := make(chan error, 1)
	var wg sync.WaitGroup
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			defer m.Unlock()
			if i == 1 {
				errc <- c.Await(ctx)
				return
			}
			c.AwaitUninterruptibly()
			woken.Add(1)
		}()
		waitConditionWaiters(t, m, c, i+1)
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled Await: got %v", err)
	}
	waitConditionWaiters(t, m, c, 2)

	m.Lock()
	c.Signal()
	c.Signal()
	m.Unlock()
	wg.Wait()
	if got := woken.Load(); got != 2 {
		t.Fatalf("woken: got %d, want 2", got)
	}
}

// =============================================================================
// Condition - Contract
// =============================================================================

func TestConditionRequiresOwnership(t *testing.T) {
	m := qsync.NewMutex()
	c := m.NewCond()

	expectViolation(t, qsync.ErrNotOwner, func() { c.Signal() })
	expectViolation(t, qsync.ErrNotOwner, func() { c.SignalAll() })
	expectViolation(t, qsync.ErrNotOwner, func() { _ = c.Await(context.Background()) })
	expectViolation(t, qsync.ErrNotOwner, func() { m.Synchronizer().HasWaiters(c) })

	other := qsync.NewMutex()
	other.Lock()
	expectViolation(t, qsync.ErrNotOwner, func() { other.Synchronizer().WaitQueueLength(c) })
	other.Unlock()

	if !m.Synchronizer().Owns(c) || other.Synchronizer().Owns(c) {
		t.Fatal("Owns: wrong owner")
	}
}

// TestConditionProducerConsumer runs a bounded buffer with two conditions.
func TestConditionProducerConsumer(t *testing.T) {
	if qsync.RaceEnabled {
		t.Skip("skip: buffer is ordered by atomix state transitions")
	}
	const capacity, items, producers = 4, 2000, 4

	m := qsync.NewMutex()
	notFull, notEmpty := m.NewCond(), m.NewCond()
	var buf []int
	var sum int

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range items {
				m.Lock()
				for len(buf) == capacity {
					notFull.AwaitUninterruptibly()
				}
				buf = append(buf, p*items+i)
				notEmpty.Signal()
				m.Unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range producers * items {
			m.Lock()
			for len(buf) == 0 {
				notEmpty.AwaitUninterruptibly()
			}
			sum += buf[0]
			buf = buf[1:]
			notFull.Signal()
			m.Unlock()
		}
	}()

	wg.Wait()
	waitDone(t, done, 10*time.Second, "consumer did not drain buffer")

	n := producers * items
	if want := n * (n - 1) / 2; sum != want {
		t.Fatalf("sum: got %d, want %d", sum, want)
	}
}
