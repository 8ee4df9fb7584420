// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import "code.hybscloud.com/atomix"

// Stats is a snapshot of process-wide synchronizer activity.
//
// Counters only advance while collection is enabled with [CollectStats].
type Stats struct {
	Enqueued  int64 // Nodes appended to a wait queue
	Parks     int64 // Calls that blocked a goroutine
	Unparks   int64 // Permits delivered to a parked or parking goroutine
	Cancelled int64 // Queued acquires abandoned on timeout or cancellation
	Transfers int64 // Condition waiters moved to a wait queue
	Signals   int64 // Signal and SignalAll calls
}

var (
	collecting atomix.Bool
	stats      statCounters
)

type statCounters struct {
	enqueued  counter
	parks     counter
	unparks   counter
	cancelled counter
	transfers counter
	signals   counter
}

type counter struct {
	n atomix.Int64
}

func (c *counter) Add(delta int64) {
	if collecting.LoadRelaxed() {
		c.n.Add(delta)
	}
}

// CollectStats enables or disables stats collection.
func CollectStats(enabled bool) {
	collecting.StoreRelease(enabled)
}

// GetStats returns the current counters.
func GetStats() (snapshot Stats) {
	snapshot.Enqueued = stats.enqueued.n.Load()
	snapshot.Parks = stats.parks.n.Load()
	snapshot.Unparks = stats.unparks.n.Load()
	snapshot.Cancelled = stats.cancelled.n.Load()
	snapshot.Transfers = stats.transfers.n.Load()
	snapshot.Signals = stats.signals.n.Load()
	return
}

// ResetStats zeroes all counters.
func ResetStats() {
	stats.enqueued.n.Store(0)
	stats.parks.n.Store(0)
	stats.unparks.n.Store(0)
	stats.cancelled.n.Store(0)
	stats.transfers.n.Store(0)
	stats.signals.n.Store(0)
}
