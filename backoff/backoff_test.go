package backoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitEscalatesThenYields(t *testing.T) {
	var b Backoff

	for i := uint32(0); i < maxSpinLevel; i++ {
		assert.Equal(t, i, b.level)
		b.Wait()
	}

	// Past the cap the level stays put and Wait degrades to a yield.
	for _i := 0; _i < 10; _i++ {
		b.Wait()
	}
	assert.Equal(t, uint32(maxSpinLevel), b.level)
}

func TestResetDropsToCheapestLevel(t *testing.T) {
	var b Backoff
	for _i := 0; _i < 8; _i++ {
		b.Wait()
	}

	b.Reset()
	assert.Equal(t, uint32(0), b.level)

	b.Wait()
	assert.Equal(t, uint32(1), b.level)
}

func TestZeroValueUsable(t *testing.T) {
	var b Backoff
	assert.NotPanics(t, func() {
		b.Wait()
		b.Reset()
		b.Wait()
	})
}

func BenchmarkWaitSpinLevels(b *testing.B) {
	var bo Backoff
	for i := 0; i < b.N; i++ {
		bo.Wait()
		if i%8 == 0 {
			bo.Reset()
		}
	}
}
