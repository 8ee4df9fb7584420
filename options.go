// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

// Options configures synchronizer creation.
type Options struct {
	// Policy (exclusive, shared, or both)
	policy any

	// Diagnostics
	name string

	// Performance hints
	spins int // Pre-park retries while first in line
}

// Builder creates synchronizers with fluent configuration.
//
// Example:
//
//	// Exclusive lock with a diagnostic name
//	s := qsync.New(policy).Name("cache").Build()
//
//	// Spin briefly before parking when first in line
//	s := qsync.New(policy).Spins(32).Build()
type Builder struct {
	opts Options
}

// New creates a synchronizer builder for policy.
//
// policy must implement [ExclusivePolicy], [SharedPolicy], or both.
// Implementing [OwnerPolicy] additionally enables [Condition].
//
// Panics if policy implements neither mode.
func New(policy any) *Builder {
	_, ex := policy.(ExclusivePolicy)
	_, sh := policy.(SharedPolicy)
	if !ex && !sh {
		panic("qsync: policy must implement ExclusivePolicy or SharedPolicy")
	}
	return &Builder{opts: Options{policy: policy}}
}

// Name sets the name reported by String and in debug logs.
func (b *Builder) Name(name string) *Builder {
	b.opts.name = name
	return b
}

// Spins sets how many times a waiter that is first in line retries the
// policy, with CPU pause between attempts, before it parks.
//
// Trade-off: lower handoff latency for short critical sections, at the
// cost of burning CPU while the owner still holds the synchronizer.
// Default 0: park as soon as the predecessor has committed to a wakeup.
func (b *Builder) Spins(n int) *Builder {
	if n < 0 {
		panic("qsync: spins must be >= 0")
	}
	b.opts.spins = n
	return b
}

// Build creates the synchronizer.
func (b *Builder) Build() *Synchronizer {
	s := &Synchronizer{
		name:  b.opts.name,
		spins: b.opts.spins,
	}
	s.exclusive, _ = b.opts.policy.(ExclusivePolicy)
	s.shared, _ = b.opts.policy.(SharedPolicy)
	s.ownership, _ = b.opts.policy.(OwnerPolicy)
	return s
}

// NewSynchronizer creates a synchronizer with default options.
// Equivalent to New(policy).Build().
func NewSynchronizer(policy any) *Synchronizer {
	return New(policy).Build()
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
