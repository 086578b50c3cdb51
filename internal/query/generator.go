package query

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Wildcard is appended to every generated term to widen the hit count
const Wildcard = "%"

// Shape names one way of building a search term
type Shape string

const (
	ShapeLetter     Shape = "letter"
	ShapeBigram     Shape = "bigram"
	ShapeLetterYear Shape = "letter_year"
	ShapeExtended   Shape = "extended"
)

// AllShapes lists every shape in a stable order
var AllShapes = []Shape{ShapeLetter, ShapeBigram, ShapeLetterYear, ShapeExtended}

const lowercase = "abcdefghijklmnopqrstuvwxyz"

// DefaultAlphabet mixes Latin letters and digits with a handful of
// non-Latin scripts so the extended shape reaches other parts of the catalog.
var DefaultAlphabet = []rune(lowercase + "0123456789" +
	"あいうえおかきくけこさしすせそたちつてとなにぬねのはひふへほまみむめもやゆよらりるれろわ" +
	"アイウエオカキクケコサシスセソタチツテト" +
	"가나다라마바사아자차카타파하" +
	"абвгдежзиклмнопрстуфхцчшэюя")

const (
	DefaultMinYear = 1990
	DefaultMaxYear = 2024
)

// Query is a generated search term together with how it was built
type Query struct {
	Text  string
	Shape Shape
}

func (q Query) String() string {
	return q.Text
}

// Generator builds randomized search terms.
// It is safe for concurrent use.
type Generator struct {
	rng      *rand.Rand
	shapes   []Shape
	alphabet []rune
	minYear  int
	maxYear  int
	mu       sync.Mutex
}

type Option func(*Generator)

// WithRand swaps the random source, mostly for reproducible runs and tests
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithShapes restricts generation to the given shapes. Unknown shapes are ignored.
func WithShapes(shapes ...Shape) Option {
	return func(g *Generator) {
		var keep []Shape
		for _, s := range shapes {
			if s.Valid() {
				keep = append(keep, s)
			}
		}
		if len(keep) > 0 {
			g.shapes = keep
		}
	}
}

// WithYearRange sets the inclusive year range; swapped bounds are reordered.
func WithYearRange(from, to int) Option {
	return func(g *Generator) {
		if from > to {
			from, to = to, from
		}
		g.minYear, g.maxYear = from, to
	}
}

// WithAlphabet replaces the character pool of the extended shape
func WithAlphabet(alphabet []rune) Option {
	return func(g *Generator) {
		if len(alphabet) > 0 {
			g.alphabet = alphabet
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		shapes:   AllShapes,
		alphabet: DefaultAlphabet,
		minYear:  DefaultMinYear,
		maxYear:  DefaultMaxYear,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next picks a shape uniformly and builds a term of that shape
func (g *Generator) Next() Query {
	g.mu.Lock()
	defer g.mu.Unlock()

	shape := g.shapes[g.rng.IntN(len(g.shapes))]

	var text string
	switch shape {
	case ShapeBigram:
		text = string([]byte{g.letter(), g.letter()}) + Wildcard
	case ShapeLetterYear:
		year := g.minYear + g.rng.IntN(g.maxYear-g.minYear+1)
		text = fmt.Sprintf("%c%s year:%d", g.letter(), Wildcard, year)
	case ShapeExtended:
		text = string(g.alphabet[g.rng.IntN(len(g.alphabet))]) + Wildcard
	default:
		text = string(g.letter()) + Wildcard
	}

	return Query{Text: text, Shape: shape}
}

// NextQuery returns only the text of Next
func (g *Generator) NextQuery() string {
	return g.Next().Text
}

func (g *Generator) letter() byte {
	return lowercase[g.rng.IntN(len(lowercase))]
}

// Valid reports whether s is one of AllShapes
func (s Shape) Valid() bool {
	for _, known := range AllShapes {
		if s == known {
			return true
		}
	}
	return false
}

// ParseShapes turns names like "letter,bigram" into shapes
func ParseShapes(names []string) ([]Shape, error) {
	var shapes []Shape
	for _, n := range names {
		s := Shape(n)
		if !s.Valid() {
			return nil, fmt.Errorf("unknown query shape: %q", n)
		}
		shapes = append(shapes, s)
	}
	return shapes, nil
}

// Classify recovers the shape of a term built by Generator.
// Terms it cannot place are reported as "".
func Classify(text string) Shape {
	term, ok := strings.CutSuffix(text, Wildcard)
	if !ok {
		if i := strings.Index(text, Wildcard+" year:"); i == 1 && isLowerASCII(text[:i]) {
			return ShapeLetterYear
		}
		return ""
	}
	switch {
	case len(term) == 1 && isLowerASCII(term):
		return ShapeLetter
	case len(term) == 2 && isLowerASCII(term):
		return ShapeBigram
	case utf8.RuneCountInString(term) == 1:
		return ShapeExtended
	}
	return ""
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return s != ""
}
