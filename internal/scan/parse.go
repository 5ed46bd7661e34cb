// Package scan interprets decoded QR code text: game launch payloads in
// several encodings, or a plain number of points.
package scan

import (
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/MiKapsDev/Lion-City/internal/game"
)

var (
	// ErrNoNumber is returned by ParseNumber when raw holds no digits.
	ErrNoNumber = errors.New("no number found")
	// ErrNumberTooLarge is returned by ParseNumber when the first digit run
	// does not fit in an int.
	ErrNumberTooLarge = errors.New("number too large")
)

var (
	simplePattern   = regexp.MustCompile(`(?i)^([a-z0-9_-]{3,})\s*[:|]\s*(-?\d+)`)
	numberPattern   = regexp.MustCompile(`-?\d+`)
	leadingInt      = regexp.MustCompile(`^[+-]?\d+`)
	pairSeparators  = regexp.MustCompile(`[;&,]`)
	fieldSeparators = regexp.MustCompile(`[:=]`)
)

// ParseGame recognises a game payload. Encodings are tried in order: JSON
// object, query string, key/value list, then "name:points" shorthand.
func ParseGame(raw string) (game.Payload, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return game.Payload{}, false
	}
	for _, parse := range []func(string) (game.Payload, bool){
		parseJSON,
		parseQuery,
		parseKeyValue,
		parseSimple,
	} {
		if p, ok := parse(text); ok {
			return p, true
		}
	}
	return game.Payload{}, false
}

// ParseNumber returns the first integer in raw.
func ParseNumber(raw string) (int, error) {
	m := numberPattern.FindString(raw)
	if m == "" {
		return 0, ErrNoNumber
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, ErrNumberTooLarge
	}
	return n, nil
}

func parseJSON(text string) (game.Payload, bool) {
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return game.Payload{}, false
	}
	var body struct {
		Game   any `json:"game"`
		Title  any `json:"title"`
		Points any `json:"points"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return game.Payload{}, false
	}
	name := stringValue(body.Game)
	if name == "" {
		name = stringValue(body.Title)
	}
	points, ok := intValue(body.Points)
	if name == "" || !ok {
		return game.Payload{}, false
	}
	return game.Payload{Game: name, Points: points}, true
}

func parseQuery(text string) (game.Payload, bool) {
	if !strings.Contains(text, "game=") && !strings.Contains(text, "points=") {
		return game.Payload{}, false
	}
	// Malformed escapes still yield the pairs that did parse.
	values, _ := url.ParseQuery(strings.ReplaceAll(strings.TrimPrefix(text, "?"), ";", "&"))
	name := strings.TrimSpace(values.Get("game"))
	points, ok := parseInt(values.Get("points"))
	if name == "" || !ok {
		return game.Payload{}, false
	}
	return game.Payload{Game: name, Points: points}, true
}

func parseKeyValue(text string) (game.Payload, bool) {
	if !strings.Contains(text, ":") && !strings.Contains(text, "=") {
		return game.Payload{}, false
	}
	var (
		name   string
		points int
		found  bool
	)
	for _, part := range pairSeparators.Split(text, -1) {
		fields := fieldSeparators.Split(part, -1)
		if len(fields) < 2 {
			continue
		}
		key, value := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		if key == "" || value == "" {
			continue
		}
		switch strings.ToLower(key) {
		case "game":
			name = value
		case "points":
			points, found = parseInt(value)
		}
	}
	if name == "" || !found {
		return game.Payload{}, false
	}
	return game.Payload{Game: name, Points: points}, true
}

func parseSimple(text string) (game.Payload, bool) {
	m := simplePattern.FindStringSubmatch(text)
	if m == nil {
		return game.Payload{}, false
	}
	points, err := strconv.Atoi(m[2])
	if err != nil {
		return game.Payload{}, false
	}
	return game.Payload{Game: m[1], Points: points}, true
}

// parseInt reads the leading integer of s, ignoring anything after it.
func parseInt(s string) (int, bool) {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return parseInt(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		return parseInt(t)
	default:
		return 0, false
	}
}
