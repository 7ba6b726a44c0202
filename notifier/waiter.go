package notifier

import (
	"sync"
	"sync/atomic"
)

// Waiter signal states, guarded by the slot's mutex.
const (
	sigNotSignaled uint32 = iota
	sigWaiting
	sigSignaled
)

// noWaiter is the "no next slot" sentinel for a waiter's stack link. It
// shares the value of the state word's empty-stack sentinel, so no valid
// slot index can collide with it.
const noWaiter = uint32(emptyStack)

// Waiter is one preallocated slot a thread sleeps on. Slots live in the
// Notifier's fixed array for its whole lifetime and are reused across
// park/wake cycles; they are addressed by stable integer index so the state
// word's 16-bit stack-head field can name any of them.
//
// A Waiter must not be shared by two threads sleeping at the same time; the
// caller assigns each sleeping thread its own slot index.
type Waiter struct {
	// next links this slot into the intrusive park stack (by index, with
	// noWaiter terminating the chain). It is written by the parking thread
	// just before the CAS that publishes it and read by the one notifier
	// that wins the pop, never by two resolvers at once.
	next atomic.Uint32

	// epoch is the state word captured by this slot's last PrepareWait,
	// written and read only by the thread using the slot.
	epoch uint64

	// idx is this slot's position in the pool, fixed at construction.
	idx uint32

	mu   sync.Mutex
	cond sync.Cond
	sig  uint32 // sigNotSignaled, sigWaiting or sigSignaled; guarded by mu
}

// park blocks the calling thread on the slot's condition variable until a
// notifier marks the slot signaled. A signal that lands before park takes
// the mutex is not lost: the loop re-checks sig before every wait.
func (w *Waiter) park() {
	w.mu.Lock()
	for w.sig != sigSignaled {
		w.sig = sigWaiting
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// signal marks the slot signaled and wakes its thread if it is already
// blocked. Called only by the resolver that popped this slot off the park
// stack, so at most one signal is in flight per parked waiter.
func (w *Waiter) signal() {
	w.mu.Lock()
	was := w.sig
	w.sig = sigSignaled
	w.mu.Unlock()
	if was == sigWaiting {
		w.cond.Signal()
	}
}

// reset arms the slot for a new park cycle. It runs before the CAS that
// publishes the slot on the stack, so a notifier cannot be mid-signal; the
// mutex is still taken to order the write against the previous cycle's
// signaler.
func (w *Waiter) reset() {
	w.mu.Lock()
	w.sig = sigNotSignaled
	w.mu.Unlock()
}
