// Package notifier implements a lock-free thread parking and waking
// primitive, the blocking backbone of a work-stealing style scheduler:
// worker threads with nothing to do sleep on it cheaply, and producers wake
// exactly as many sleepers as they have work for, without a global lock and
// without ever losing a wakeup.
//
// The primitive gives callers a two-phase sleep protocol around a wake
// condition the callers own (the notifier never inspects it):
//   - PrepareWait publishes the intent to sleep.
//   - The caller re-checks its condition.
//   - CommitWait parks the thread, or CancelWait aborts the intent.
//
// A producer that makes the condition true calls Notify afterwards. The
// prepare/commit split closes the classic missed-wakeup race: a Notify that
// fires between a caller's condition check and its CommitWait is detected by
// an epoch counter, and the CommitWait returns immediately instead of
// parking forever.
//
// Properties:
//   - No locks on the shared path: one atomic 64-bit word, mutated by CAS,
//     carries the parked-waiter stack, the prepare count and the epoch.
//   - Per-slot blocking: each waiter parks on its own mutex and condition
//     variable, so wakeups never contend with unrelated sleepers.
//   - LIFO wakeup: repeated single notifies wake the most recently parked
//     waiter first. This is a throughput choice, not a fairness guarantee.
//   - Fixed capacity: slots are preallocated at construction and addressed
//     by index, up to MaxCapacity of them.
//
// Example usage:
//
//	n := notifier.New(numWorkers)
//	defer n.Close()
//
//	// Worker side:
//	w := n.GetWaiter(workerID)
//	n.PrepareWait(w)
//	if workAvailable() { // caller-owned condition, re-checked after prepare
//	    n.CancelWait(w)
//	} else {
//	    n.CommitWait(w) // sleeps until a producer notifies
//	}
//
//	// Producer side:
//	publishWork() // must be visible via atomic or locked writes
//	n.Notify(false)
//
// Callers must publish the condition's change with atomic operations (or a
// mutex) before calling Notify; the notifier's own atomics then order the
// publication against a concurrent PrepareWait.
package notifier

import (
	"fmt"
	"sync/atomic"

	"github.com/ahrav/go-notifier/backoff"
)

// Notifier coordinates an arbitrary number of sleeping threads over a fixed
// pool of waiter slots. All methods are safe for concurrent use. The zero
// value is not usable; construct with New.
type Notifier struct {
	// state is the packed coordination word (see state.go). Never guarded
	// by a lock; mutated only via atomic operations.
	state atomic.Uint64

	waiters []Waiter
}

// New creates a Notifier with capacity waiter slots. The slots live for the
// Notifier's lifetime and are handed out by index via GetWaiter.
//
// New panics if capacity is not in [1, MaxCapacity]: slot indices must fit
// the state word's 16-bit stack-head field with its empty sentinel reserved.
func New(capacity int) *Notifier {
	if capacity < 1 || capacity > MaxCapacity {
		panic(fmt.Sprintf("notifier: capacity %d outside [1, %d]", capacity, MaxCapacity))
	}

	n := &Notifier{waiters: make([]Waiter, capacity)}
	for i := range n.waiters {
		w := &n.waiters[i]
		w.idx = uint32(i)
		w.cond.L = &w.mu
	}
	n.state.Store(emptyStack) // empty stack, zero prepared, zero epoch
	return n
}

// Close verifies the notifier is quiescent. It panics if any waiter is
// still announced (prepared but not committed or cancelled) or parked:
// tearing down a notifier with live waiters is a lifetime bug in the
// caller, not a recoverable condition. Close is idempotent on a quiescent
// notifier.
func (n *Notifier) Close() {
	s := state(n.state.Load())
	if !s.stackEmpty() || s.prepared() != 0 {
		panic("notifier: closed with waiters still announced or parked")
	}
}

// GetWaiter returns the slot at idx, or nil if idx is out of range. The
// returned slot is valid for the Notifier's whole lifetime.
func (n *Notifier) GetWaiter(idx int) *Waiter {
	if idx < 0 || idx >= len(n.waiters) {
		return nil
	}
	return &n.waiters[idx]
}

// PrepareWait announces that the calling thread may sleep on w. It must be
// followed by re-checking the caller's wake condition and then exactly one
// of CommitWait or CancelWait on the same slot.
//
// The increment is a single fetch-and-add: preparing never conflicts with
// other preparers, and the sequentially consistent add doubles as the
// barrier that keeps the caller's condition re-check from being reordered
// before the announcement.
func (n *Notifier) PrepareWait(w *Waiter) {
	w.epoch = n.state.Add(prepInc) - prepInc
}

// expectedEpoch computes the epoch at which this waiter's announcement is
// next in line to be resolved: the snapshot's epoch plus one resolution for
// every waiter announced at snapshot time, this one included (the snapshot
// precedes the increment, so the prepared field already counts the others).
func expectedEpoch(snapshot uint64) uint64 {
	return (snapshot & epochMask) + ((snapshot&prepMask)>>prepShift)<<epochShift
}

// CommitWait parks the calling thread on w until a Notify wakes it, unless
// a Notify has already resolved the announcement, in which case it returns
// immediately without blocking. Must be preceded by PrepareWait(w).
func (n *Notifier) CommitWait(w *Waiter) {
	w.reset()

	expected := expectedEpoch(w.epoch)
	var b backoff.Backoff
	for {
		cur := state(n.state.Load())
		switch epochCmp(cur.epoch(), expected) {
		case -1:
			// Another in-flight prepare from the snapshot has not been
			// accounted yet; the window closes with that thread's next CAS.
			b.Wait()
			continue
		case 1:
			// A Notify already consumed this announcement; no parking.
			return
		}

		// Resolve the announcement and push w in one CAS: consume one
		// prepared unit, advance the epoch, link w above the current top.
		next := uint64(cur) - prepInc + epochInc
		next = next&^stackMask | uint64(w.idx)
		if cur.stackEmpty() {
			w.next.Store(noWaiter)
		} else {
			w.next.Store(uint32(cur.stackTop()))
		}
		if n.state.CompareAndSwap(uint64(cur), next) {
			break
		}
		b.Reset()
	}

	w.park()
}

// CancelWait withdraws the announcement made by PrepareWait(w), for a caller
// that re-checked its condition and found it already satisfied. If a Notify
// resolved the announcement first, CancelWait simply returns; the caller
// must not park either way.
func (n *Notifier) CancelWait(w *Waiter) {
	expected := expectedEpoch(w.epoch)
	var b backoff.Backoff
	for {
		cur := state(n.state.Load())
		switch epochCmp(cur.epoch(), expected) {
		case -1:
			b.Wait()
			continue
		case 1:
			return
		}

		// Same resolution as a committing waiter, minus the stack push.
		if n.state.CompareAndSwap(uint64(cur), uint64(cur)-prepInc+epochInc) {
			return
		}
		b.Reset()
	}
}

// Notify wakes sleeping or about-to-sleep waiters. With all set it resolves
// every announced waiter and wakes every parked one; otherwise it resolves
// exactly one, preferring an announced-but-not-yet-parked waiter (resolved
// by an epoch bump alone, no condition variable touched) over popping and
// waking a parked one.
//
// Call Notify after publishing the change the waiters' condition observes;
// the publication must itself use atomic or locked writes.
func (n *Notifier) Notify(all bool) {
	for {
		cur := state(n.state.Load())
		if cur.stackEmpty() && cur.prepared() == 0 {
			return
		}

		prepared := cur.prepared()
		var next uint64
		switch {
		case all:
			// One epoch bump per announced waiter resolves them all without
			// parking; clearing the stack hands this thread the whole chain.
			next = cur.epoch() + epochInc*prepared + emptyStack
		case prepared > 0:
			next = uint64(cur) + epochInc - prepInc
		default:
			// Pop the top parked waiter; its link becomes the new head.
			top := &n.waiters[cur.stackTop()]
			newTop := uint64(emptyStack)
			if link := top.next.Load(); link != noWaiter {
				newTop = uint64(link)
			}
			next = cur.epoch() | newTop
		}

		if !n.state.CompareAndSwap(uint64(cur), next) {
			continue
		}
		if !all && prepared > 0 {
			// Resolved an announced waiter purely by the epoch bump; its
			// CommitWait or CancelWait will observe it and return.
			return
		}
		if cur.stackEmpty() {
			return
		}

		w := &n.waiters[cur.stackTop()]
		if !all {
			// Single pop: detach w so the walk below stops after one node.
			w.next.Store(noWaiter)
		}
		for w != nil {
			// Read the link before signaling: a woken waiter may re-park
			// and overwrite it.
			link := w.next.Load()
			w.signal()
			if link == noWaiter {
				w = nil
			} else {
				w = &n.waiters[link]
			}
		}
		return
	}
}

// NotifyN wakes up to count waiters: equivalent to Notify(true) when count
// is at least the notifier's capacity, otherwise to count single Notify
// calls. NotifyN(0) is a no-op.
func (n *Notifier) NotifyN(count int) {
	if count >= len(n.waiters) {
		n.Notify(true)
		return
	}
	for i := 0; i < count; i++ {
		n.Notify(false)
	}
}
