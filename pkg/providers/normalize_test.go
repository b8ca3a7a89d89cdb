package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRescaleClampsToRange(t *testing.T) {
	assert.Equal(t, 0.0, Rescale(-5, 0, 10))
	assert.Equal(t, 100.0, Rescale(15, 0, 10))
	assert.InDelta(t, 50.0, Rescale(5, 0, 10), 0.0001)
}

func TestRescaleDegenerateRangeReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, Rescale(5, 10, 10))
}
