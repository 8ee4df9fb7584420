// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync_test

import (
	"fmt"
	"sync"
	"testing"

	"code.hybscloud.com/qsync"
)

// =============================================================================
// Uncontended Baselines
// =============================================================================

func BenchmarkSynchronizer_Uncontended(b *testing.B) {
	s := qsync.NewSynchronizer(binaryPolicy{})

	b.ResetTimer()
	for range b.N {
		s.Acquire(1)
		s.Release(1)
	}
}

func BenchmarkMutex_Uncontended(b *testing.B) {
	m := qsync.NewMutex()

	b.ResetTimer()
	for range b.N {
		m.Lock()
		m.Unlock()
	}
}

func BenchmarkSyncMutex_Uncontended(b *testing.B) {
	var m sync.Mutex

	b.ResetTimer()
	for range b.N {
		m.Lock()
		m.Unlock()
	}
}

// =============================================================================
// Contended
// =============================================================================

func BenchmarkSynchronizer_Contended(b *testing.B) {
	for _, spins := range []int{0, 16} {
		b.Run(fmt.Sprintf("spins=%d", spins), func(b *testing.B) {
			s := qsync.New(binaryPolicy{}).Spins(spins).Build()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					s.Acquire(1)
					s.Release(1)
				}
			})
		})
	}
}

func BenchmarkMutex_Contended(b *testing.B) {
	for _, fair := range []bool{false, true} {
		name, m := "barging", qsync.NewMutex()
		if fair {
			name, m = "fair", qsync.NewFairMutex()
		}
		b.Run(name, func(b *testing.B) {
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					m.Lock()
					m.Unlock()
				}
			})
		})
	}
}

func BenchmarkSemaphore_Contended(b *testing.B) {
	sem := qsync.NewSemaphore(4)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			sem.Acquire(1)
			sem.Release(1)
		}
	})
}

func BenchmarkRWMutex_ReadMostly(b *testing.B) {
	rw := qsync.NewRWMutex()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%16 == 0 {
				rw.Lock()
				rw.Unlock()
			} else {
				rw.RLock()
				rw.RUnlock()
			}
			i++
		}
	})
}
