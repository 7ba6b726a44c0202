package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestWaiter() *Waiter {
	w := &Waiter{}
	w.cond.L = &w.mu
	return w
}

// A signal that lands before the thread reaches park must not be lost.
func TestSignalBeforeParkIsNotLost(t *testing.T) {
	w := newTestWaiter()
	w.reset()
	w.signal()

	done := make(chan struct{})
	go func() {
		w.park()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("park blocked despite a prior signal")
	}
}

func TestParkBlocksUntilSignal(t *testing.T) {
	w := newTestWaiter()
	w.reset()

	done := make(chan struct{})
	go func() {
		w.park()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("park returned without a signal")
	case <-time.After(50 * time.Millisecond):
	}

	w.signal()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("park did not return after signal")
	}
}

func TestResetArmsSlotForReuse(t *testing.T) {
	w := newTestWaiter()

	for _i := 0; _i < 3; _i++ {
		w.reset()
		assert.Equal(t, sigNotSignaled, w.sig)

		w.signal()
		assert.Equal(t, sigSignaled, w.sig)
		w.park() // returns immediately, slot already signaled
	}
}
