// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"code.hybscloud.com/atomix"
	"golang.org/x/sys/cpu"
)

// parkerPoolCapacity bounds the number of idle parkers kept for reuse.
const parkerPoolCapacity = 256

var parkers = newParkerPool(parkerPoolCapacity)

// parkerPool is a bounded lock-free free list of parkers.
//
// Puts and gets claim ring positions with Fetch-And-Add over 2n slots for
// capacity n. A slot's round counter says whose turn it is: the put for
// position pos sees round pos/n, the get for pos sees pos/n+1.
//
// Every operation makes exactly one attempt. A put that loses its slot
// drops the parker and a get that loses its slot allocates, so a parker can
// be lost to the garbage collector but is never handed out twice.
type parkerPool struct {
	_     cpu.CacheLinePad
	puts  atomix.Uint64
	_     cpu.CacheLinePad
	gets  atomix.Uint64
	_     cpu.CacheLinePad
	slots []poolSlot
	n     uint64 // usable capacity
	mask  uint64 // 2n - 1
}

type poolSlot struct {
	round atomix.Uint64
	p     *parker
}

func newParkerPool(capacity int) *parkerPool {
	if capacity < 2 {
		panic("qsync: pool capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	q := &parkerPool{
		slots: make([]poolSlot, 2*n),
		n:     n,
		mask:  2*n - 1,
	}
	for i := range q.slots {
		q.slots[i].round.StoreRelaxed(uint64(i) / n)
	}
	return q
}

// get takes an idle parker or allocates a fresh one.
//
// The race detector cannot see the ordering the slot rounds provide, so
// pooling is bypassed in race builds.
func (q *parkerPool) get() *parker {
	if RaceEnabled {
		return newParker()
	}
	if p, ok := q.tryGet(); ok {
		return p
	}
	return newParker()
}

// put offers p for reuse. A full pool drops it.
func (q *parkerPool) put(p *parker) {
	if RaceEnabled {
		return
	}
	q.tryPut(p)
}

func (q *parkerPool) tryPut(p *parker) bool {
	if q.puts.LoadAcquire() >= q.gets.LoadAcquire()+q.n {
		return false
	}
	pos := q.puts.AddAcqRel(1) - 1
	s := &q.slots[pos&q.mask]
	if s.round.LoadAcquire() != pos/q.n {
		return false
	}
	s.p = p
	s.round.StoreRelease(pos/q.n + 1)
	return true
}

func (q *parkerPool) tryGet() (*parker, bool) {
	if q.gets.LoadAcquire() >= q.puts.LoadAcquire() {
		return nil, false
	}
	pos := q.gets.AddAcqRel(1) - 1
	s := &q.slots[pos&q.mask]
	want := pos/q.n + 1
	r := s.round.LoadAcquire()
	if r == want {
		p := s.p
		s.p = nil
		s.round.StoreRelease(want + 1)
		return p, true
	}
	if r < want {
		// The put for pos is late or lost: hand the slot to the next round.
		s.round.CompareAndSwapAcqRel(r, want+1)
		q.advancePuts(pos + 1)
	}
	return nil, false
}

// advancePuts moves the put cursor up to pos so later puts do not land on
// slots already passed by gets.
func (q *parkerPool) advancePuts(pos uint64) {
	for {
		cur := q.puts.LoadAcquire()
		if cur >= pos || q.puts.CompareAndSwapAcqRel(cur, pos) {
			return
		}
	}
}
