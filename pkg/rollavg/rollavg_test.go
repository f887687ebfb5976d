package rollavg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyWindow(t *testing.T) {
	w := New(4)
	assert.False(t, w.Ready())
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0.0, w.Mean())
}

func TestPartialWindow(t *testing.T) {
	w := New(4)
	w.Add(10)
	w.Add(20)
	assert.True(t, w.Ready())
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 15.0, w.Mean())
}

func TestFullWindowEvictsOldest(t *testing.T) {
	w := New(3)
	for _, v := range []float64{1, 2, 3} {
		w.Add(v)
	}
	assert.Equal(t, 2.0, w.Mean())

	w.Add(9) // evicts 1
	assert.Equal(t, 3, w.Len())
	assert.InDelta(t, (2.0+3.0+9.0)/3.0, w.Mean(), 1e-9)
}

func TestZeroSizeClampedToOne(t *testing.T) {
	w := New(0)
	w.Add(5)
	w.Add(7)
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, 7.0, w.Mean())
}
