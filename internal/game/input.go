package game

import (
	"math"
	"strings"
)

// SwipeThreshold is the minimum travel in pixels on at least one axis for a
// swipe to count.
const SwipeThreshold = 12

// ParseKey maps a keyboard key name to a direction. Matching is case-insensitive.
func ParseKey(key string) (Point, bool) {
	switch strings.ToLower(key) {
	case "arrowup", "w":
		return Up, true
	case "arrowdown", "s":
		return Down, true
	case "arrowleft", "a":
		return Left, true
	case "arrowright", "d":
		return Right, true
	}
	return Point{}, false
}

// ParseButton maps an on-screen d-pad button name to a direction.
func ParseButton(name string) (Point, bool) {
	switch strings.ToLower(name) {
	case "up":
		return Up, true
	case "down":
		return Down, true
	case "left":
		return Left, true
	case "right":
		return Right, true
	}
	return Point{}, false
}

// ParseInput accepts either a d-pad name or a key name.
func ParseInput(s string) (Point, bool) {
	if p, ok := ParseButton(s); ok {
		return p, true
	}
	return ParseKey(s)
}

// ParseSwipe converts a touch movement to a direction. Movements shorter than
// SwipeThreshold on both axes are ignored; otherwise the dominant axis wins,
// with ties going to the vertical axis.
func ParseSwipe(dx, dy float64) (Point, bool) {
	ax, ay := math.Abs(dx), math.Abs(dy)
	if ax < SwipeThreshold && ay < SwipeThreshold {
		return Point{}, false
	}
	if ax > ay {
		if dx > 0 {
			return Right, true
		}
		return Left, true
	}
	if dy > 0 {
		return Down, true
	}
	return Up, true
}
