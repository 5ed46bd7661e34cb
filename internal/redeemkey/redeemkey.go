// Package redeemkey generates the short receipt codes shown after a spend.
// Keys are presentational: they are neither unique nor verifiable.
package redeemkey

import (
	"crypto/rand"
	"strings"
)

// Prefix tags every key.
const Prefix = "LC"

// Alphabet omits characters that are easy to confuse (0/O, 1/I).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	blocks    = 3
	blockSize = 4
)

// Generator produces redemption keys.
type Generator interface {
	Generate() string
}

// Random draws keys from crypto/rand.
type Random struct{}

// Generate returns a key of the form LC-XXXX-XXXX-XXXX.
func (Random) Generate() string {
	return New()
}

// New returns a fresh key of the form LC-XXXX-XXXX-XXXX.
func New() string {
	buf := make([]byte, blocks*blockSize)
	// crypto/rand.Read never returns an error on supported platforms.
	rand.Read(buf)

	var b strings.Builder
	b.WriteString(Prefix)
	for i, v := range buf {
		if i%blockSize == 0 {
			b.WriteByte('-')
		}
		// len(Alphabet) is 32, so masking keeps the distribution uniform.
		b.WriteByte(Alphabet[v&31])
	}
	return b.String()
}

// Valid reports whether key has the generator's shape.
func Valid(key string) bool {
	parts := strings.Split(key, "-")
	if len(parts) != blocks+1 || parts[0] != Prefix {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != blockSize {
			return false
		}
		for _, c := range p {
			if !strings.ContainsRune(Alphabet, c) {
				return false
			}
		}
	}
	return true
}

// Fixed always returns the same key. Useful in tests and fixtures.
type Fixed string

// Generate implements Generator.
func (f Fixed) Generate() string { return string(f) }
