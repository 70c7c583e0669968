// Package codes produces and normalizes the short registration codes handed
// out after an approved payment.
package codes

import (
	"math/rand/v2"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	Length  = 6
	letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"

	letterCount = 4
	digitCount  = 2
)

// Generator returns a new candidate code on every call. Candidates are not
// guaranteed unique; callers check uniqueness at the storage layer.
type Generator interface {
	Generate() string
}

// RandomGenerator draws 4 letters and 2 digits and shuffles them. It is not a
// source of secrets.
type RandomGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomGenerator() *RandomGenerator {
	return NewSeededGenerator(rand.Uint64(), rand.Uint64())
}

func NewSeededGenerator(seed1, seed2 uint64) *RandomGenerator {
	return &RandomGenerator{rnd: rand.New(rand.NewPCG(seed1, seed2))}
}

func (g *RandomGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, 0, Length)
	for i := 0; i < letterCount; i++ {
		buf = append(buf, letters[g.rnd.IntN(len(letters))])
	}
	for i := 0; i < digitCount; i++ {
		buf = append(buf, digits[g.rnd.IntN(len(digits))])
	}
	g.rnd.Shuffle(len(buf), func(i, j int) { buf[i], buf[j] = buf[j], buf[i] })
	return string(buf)
}

// Normalize turns user-typed input into the canonical code form: NFKC, only
// ASCII letters and digits, uppercase.
func Normalize(raw string) string {
	folded := norm.NFKC.String(raw)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// WellFormed reports whether code has the issued shape.
func WellFormed(code string) bool {
	if len(code) != Length {
		return false
	}
	var l, d int
	for i := 0; i < len(code); i++ {
		switch c := code[i]; {
		case c >= 'A' && c <= 'Z':
			l++
		case c >= '0' && c <= '9':
			d++
		default:
			return false
		}
	}
	return l == letterCount && d == digitCount
}
