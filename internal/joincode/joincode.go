// Package joincode generates the short human-shareable codes participants
// type to join a session.
package joincode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet leaves out characters that are easy to misread: 0/O and 1/I.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultPrefix is prepended to every code.
const DefaultPrefix = "ALL"

const (
	separator = "-"
	length    = 4
)

// Generator produces codes of the form PREFIX-XXXX.
type Generator struct {
	prefix string
}

// New returns a generator for the given four-letter prefix.
func New(prefix string) (*Generator, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if len(prefix) > 4 || strings.ContainsAny(prefix, separator+" ") {
		return nil, fmt.Errorf("joincode: invalid prefix %q", prefix)
	}
	return &Generator{prefix: prefix}, nil
}

// Generate returns a fresh random code.
func (g *Generator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString(g.prefix)
	b.WriteString(separator)
	limit := big.NewInt(int64(len(Alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("joincode: read random: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Valid reports whether code has this generator's format. Lookups should
// Normalize first.
func (g *Generator) Valid(code string) bool {
	rest, ok := strings.CutPrefix(code, g.prefix+separator)
	if !ok || len(rest) != length {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if strings.IndexByte(Alphabet, rest[i]) < 0 {
			return false
		}
	}
	return true
}

// Normalize trims and upper-cases a typed code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
