// Package slug generates short random slugs that do not collide with
// existing keys.
package slug

import (
	"fmt"
	"math/rand/v2"

	"github.com/starford/qrdirector/internal/apperr"
)

const (
	// Alphabet holds every character a generated slug may contain.
	Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	MinLength   = 5
	MaxLength   = 8
	MaxAttempts = 100
)

// ExistsFunc reports whether a candidate slug is already taken.
type ExistsFunc func(slug string) bool

// Generator draws random slugs from Alphabet.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator returns a generator backed by src. A nil src uses a
// randomly seeded PCG source.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{rnd: rand.New(src)}
}

// Generate returns the first candidate for which exists is false.
// After MaxAttempts collisions it gives up with apperr.ErrGenerationExhausted.
//
// Generate is not safe for concurrent use; callers serialize access.
func (g *Generator) Generate(exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		candidate := g.candidate()
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", apperr.ErrGenerationExhausted, MaxAttempts)
}

func (g *Generator) candidate() string {
	n := MinLength + g.rnd.IntN(MaxLength-MinLength+1)
	b := make([]byte, n)
	for i := range b {
		b[i] = Alphabet[g.rnd.IntN(len(Alphabet))]
	}
	return string(b)
}

// IsValid reports whether s could have been produced by a Generator.
func IsValid(s string) bool {
	if len(s) < MinLength || len(s) > MaxLength {
		return false
	}
	for _, c := range s {
		if !isValidChar(c) {
			return false
		}
	}
	return true
}

func isValidChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
