package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKey(t *testing.T) {
	tests := map[string]Point{
		"ArrowUp": Up, "w": Up, "W": Up,
		"arrowdown": Down, "s": Down,
		"ArrowLeft": Left, "a": Left,
		"ARROWRIGHT": Right, "d": Right,
	}
	for key, want := range tests {
		got, ok := ParseKey(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok := ParseKey("space")
	assert.False(t, ok)
	_, ok = ParseKey("up")
	assert.False(t, ok, "button names are not keys")
}

func TestParseInput(t *testing.T) {
	p, ok := ParseInput("up")
	assert.True(t, ok)
	assert.Equal(t, Up, p)

	p, ok = ParseInput("d")
	assert.True(t, ok)
	assert.Equal(t, Right, p)

	_, ok = ParseInput("jump")
	assert.False(t, ok)
}

func TestParseSwipe(t *testing.T) {
	_, ok := ParseSwipe(11, -11)
	assert.False(t, ok, "below threshold on both axes")

	tests := []struct {
		dx, dy float64
		want   Point
	}{
		{12, 0, Right},
		{-30, 5, Left},
		{3, 40, Down},
		{0, -12, Up},
		{20, 20, Down},
	}
	for _, tt := range tests {
		got, ok := ParseSwipe(tt.dx, tt.dy)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "dx=%v dy=%v", tt.dx, tt.dy)
	}
}
