// Package backoff provides an adaptive spin-then-yield strategy for retry
// loops on short-lived contention windows. The Backoff type starts with cheap
// busy spinning and escalates to yielding the processor as consecutive waits
// accumulate, balancing CPU utilization with wakeup latency.
//
// The strategy is tuned for windows that resolve via another thread's
// in-flight atomic operation: the first few waits are empty spin loops whose
// length doubles per attempt, after which each wait yields to the scheduler
// instead of burning cycles.
//
// Example usage:
//
//	var b backoff.Backoff
//	for !condition() {
//	    b.Wait()
//	}
package backoff

import "runtime"

const (
	// baseSpin is the iteration count of the first spin level.
	baseSpin = 16
	// maxSpinLevel bounds the doubling; past it every Wait yields instead.
	maxSpinLevel = 4
)

// Backoff tracks consecutive waits and escalates from spinning to yielding.
// The zero value is ready to use. A Backoff is not safe for concurrent use;
// each spinning goroutine owns its own.
type Backoff struct {
	level uint32
}

// Wait blocks the caller briefly. The first few calls busy-spin with
// doubling iteration counts; subsequent calls yield the processor.
func (b *Backoff) Wait() {
	if b.level < maxSpinLevel {
		for i := 0; i < baseSpin<<b.level; i++ {
			// Empty spin loop.
		}
		b.level++
		return
	}
	runtime.Gosched()
}

// Reset drops back to the cheapest spin level. Call it when the awaited
// condition makes progress, so a new wait starts cheap again.
func (b *Backoff) Reset() { b.level = 0 }
