package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MiKapsDev/Lion-City/internal/game"
)

func TestParseGame(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want game.Payload
	}{
		{"json", `{"game":"snake","points":50}`, game.Payload{Game: "snake", Points: 50}},
		{"json title and string points", ` {"title":" Snake ","points":"75 pts"} `, game.Payload{Game: "Snake", Points: 75}},
		{"json fractional points", `{"game":"snake","points":12.9}`, game.Payload{Game: "snake", Points: 12}},
		{"query", "game=snake&points=40", game.Payload{Game: "snake", Points: 40}},
		{"query with semicolons", "?game=snake;points=40", game.Payload{Game: "snake", Points: 40}},
		{"key value", "game:snake;points:50", game.Payload{Game: "snake", Points: 50}},
		{"key value mixed case", "GAME = tetris, Points = 20", game.Payload{Game: "tetris", Points: 20}},
		{"simple pipe", "snake|50", game.Payload{Game: "snake", Points: 50}},
		{"simple colon negative", "Snake : -5", game.Payload{Game: "Snake", Points: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseGame(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGameRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"50",
		"hello world",
		`{"game":"snake"}`,
		`{"points":10}`,
		"points=30",
		"game=snake&points=many",
		"ab:10",
		"{broken",
	} {
		_, ok := ParseGame(in)
		assert.False(t, ok, "%q", in)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr error
	}{
		{"50", 50, nil},
		{"Bonus -20 today", -20, nil},
		{"code 0042x 17", 42, nil},
		{"points=30", 30, nil},
		{"no digits", 0, ErrNoNumber},
		{"99999999999999999999999", 0, ErrNumberTooLarge},
		{"PROMO 9223372036854775808", 0, ErrNumberTooLarge},
	}
	for _, tt := range tests {
		got, err := ParseNumber(tt.in)
		assert.ErrorIs(t, err, tt.wantErr, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
