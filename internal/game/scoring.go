package game

import (
	"fmt"
	"math"
	"time"
)

const (
	MaxMultiplier = 2.5
	// MultiplierStep is added per point of score before rounding.
	MultiplierStep = 0.15

	MinTickDelay = 90 * time.Millisecond
	MaxTickDelay = 190 * time.Millisecond
)

// Multiplier converts a score to the award multiplier, rounded to one decimal
// and clamped to [1, MaxMultiplier].
func Multiplier(score int) float64 {
	raw := 1 + float64(score)*MultiplierStep
	return clamp(math.Round(raw*10)/10, 1, MaxMultiplier)
}

// FinalPoints is the amount awarded for basePoints at multiplier, clamped to
// [0, math.MaxInt].
func FinalPoints(basePoints int, multiplier float64) int {
	v := math.Round(float64(basePoints) * multiplier)
	if v >= math.MaxInt {
		return math.MaxInt
	}
	return max(0, int(v))
}

// TickDelay interpolates the movement interval from MaxTickDelay at
// multiplier 1 down to MinTickDelay at MaxMultiplier.
func TickDelay(multiplier float64) time.Duration {
	ratio := clamp((multiplier-1)/(MaxMultiplier-1), 0, 1)
	span := float64((MaxTickDelay - MinTickDelay) / time.Millisecond)
	ms := math.Round(float64(MaxTickDelay/time.Millisecond) - span*ratio)
	return time.Duration(ms) * time.Millisecond
}

// AwardReason is the transaction reason recorded for a finished game.
func AwardReason(score int, multiplier float64) string {
	return fmt.Sprintf("QR-Game Snake (%d Score, %.1fx)", score, multiplier)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
