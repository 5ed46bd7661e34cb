package game

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMultiplier(t *testing.T) {
	tests := []struct {
		score int
		want  float64
	}{
		{0, 1.0},
		{1, 1.2},
		{2, 1.3},
		{4, 1.6},
		{10, 2.5},
		{40, 2.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Multiplier(tt.score), 1e-9, "score %d", tt.score)
	}
}

func TestFinalPoints(t *testing.T) {
	assert.Equal(t, 160, FinalPoints(100, Multiplier(4)))
	assert.Equal(t, 50, FinalPoints(50, Multiplier(0)))
	assert.Equal(t, 0, FinalPoints(0, 2.5))
	assert.Equal(t, 0, FinalPoints(-20, 1.5))
	assert.Equal(t, 13, FinalPoints(5, 2.5))
	assert.Equal(t, math.MaxInt, FinalPoints(math.MaxInt, 2.5), "saturates instead of wrapping")
}

func TestTickDelay(t *testing.T) {
	assert.Equal(t, 190*time.Millisecond, TickDelay(1))
	assert.Equal(t, 150*time.Millisecond, TickDelay(Multiplier(4)))
	assert.Equal(t, 90*time.Millisecond, TickDelay(2.5))
	assert.Equal(t, 190*time.Millisecond, TickDelay(0.5), "clamped below")
	assert.Equal(t, 90*time.Millisecond, TickDelay(4), "clamped above")
}

func TestAwardReason(t *testing.T) {
	assert.Equal(t, "QR-Game Snake (4 Score, 1.6x)", AwardReason(4, 1.6))
	assert.Equal(t, "QR-Game Snake (0 Score, 1.0x)", AwardReason(0, 1))
}
