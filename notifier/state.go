package notifier

// The notifier packs its entire coordination state into one atomic 64-bit
// word, mutated only by compare-and-swap:
//
//	[0, 16)  stack-head: index of the top parked waiter, or emptyStack
//	[16, 32) prepared:   waiters between PrepareWait and Commit/Cancel
//	[32, 64) epoch:      generation counter, bumped once per resolved waiter
//
// Folding the parked stack's head into the same word as the counters lets a
// single CAS both resolve a waiter and link or unlink it.
const (
	stackBits = 16
	stackMask = (uint64(1) << stackBits) - 1

	prepShift = 16
	prepBits  = 16
	prepMask  = ((uint64(1) << prepBits) - 1) << prepShift

	epochShift = 32
	epochMask  = ^(stackMask | prepMask)

	// prepInc and epochInc are one unit in their respective fields; the
	// protocol mutates the counters by adding or subtracting these.
	prepInc  = uint64(1) << prepShift
	epochInc = uint64(1) << epochShift

	// emptyStack is the all-ones stack-head sentinel. It doubles as the
	// capacity ceiling: index emptyStack can never name a real slot.
	emptyStack = stackMask
)

// MaxCapacity is the largest number of waiter slots a Notifier can hold,
// bounded by the 16-bit stack-head field minus its empty sentinel.
const MaxCapacity = int(emptyStack) - 1

// state is a decoded view over the packed word. It exists so the protocol's
// retry loops read as field accesses instead of inline shifts.
type state uint64

// stackTop returns the index of the top parked waiter. Only meaningful when
// stackEmpty is false.
func (s state) stackTop() uint64 { return uint64(s) & stackMask }

func (s state) stackEmpty() bool { return uint64(s)&stackMask == emptyStack }

// prepared returns the count of announced-but-unresolved waiters.
func (s state) prepared() uint64 { return (uint64(s) & prepMask) >> prepShift }

// epoch returns the epoch bits in place (not shifted down); epochs are only
// ever compared or incremented in field position.
func (s state) epoch() uint64 { return uint64(s) & epochMask }

// epochCmp orders two in-position epoch values under wraparound: it is the
// sign of their signed difference, so a counter that has wrapped past zero
// still compares as newer. A plain unsigned comparison would invert near the
// wrap boundary.
func epochCmp(a, b uint64) int {
	d := int64(a - b)
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}
