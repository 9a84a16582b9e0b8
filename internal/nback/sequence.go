package nback

import (
	"fmt"
	"math/rand"
)

// Sequence is the immutable trial list of one block.
type Sequence struct {
	symbols []string
	n       int
}

func (s Sequence) Len() int { return len(s.symbols) }

func (s Sequence) At(i int) string { return s.symbols[i] }

func (s Sequence) Symbols() []string { return append([]string(nil), s.symbols...) }

// IsMatch is the ground truth for trial i: true only when i >= n and the
// symbol equals the one shown n trials earlier.
func (s Sequence) IsMatch(i int) bool {
	if i < s.n || i >= len(s.symbols) {
		return false
	}
	return s.symbols[i] == s.symbols[i-s.n]
}

// Generator builds per-block sequences. It is not safe for concurrent use;
// the engine only calls it under its own lock.
type Generator struct {
	alphabet []string
	n        int
	length   int
	p        float64
	rng      *rand.Rand
}

func NewGenerator(cfg Config, rng *rand.Rand) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	return &Generator{
		alphabet: append([]string(nil), cfg.Alphabet...),
		n:        cfg.N,
		length:   cfg.ItemsPerBlock,
		p:        cfg.MatchProbability,
		rng:      rng,
	}, nil
}

func (g *Generator) Next() Sequence {
	out := make([]string, g.length)
	for i := range out {
		if i < g.n {
			out[i] = g.alphabet[g.rng.Intn(len(g.alphabet))]
			continue
		}
		back := out[i-g.n]
		if g.rng.Float64() < g.p {
			out[i] = back
			continue
		}
		out[i] = g.drawExcluding(back)
	}
	return Sequence{symbols: out, n: g.n}
}

// drawExcluding picks uniformly among the alphabet minus one symbol.
func (g *Generator) drawExcluding(sym string) string {
	k := g.rng.Intn(len(g.alphabet) - 1)
	for _, s := range g.alphabet {
		if s == sym {
			continue
		}
		if k == 0 {
			return s
		}
		k--
	}
	// sym not in the alphabet; any symbol is a non-match
	return g.alphabet[g.rng.Intn(len(g.alphabet))]
}
