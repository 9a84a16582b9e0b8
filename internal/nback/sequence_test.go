package nback

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func newTestGenerator(t *testing.T, mutate func(*Config)) *Generator {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	gen, err := NewGenerator(cfg, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("should be able to create generator: %v", err)
	}
	return gen
}

func TestSequenceGroundTruth(t *testing.T) {
	gen := newTestGenerator(t, nil)
	for b := 0; b < 200; b++ {
		seq := gen.Next()
		if seq.Len() != 20 {
			t.Fatalf("expected length 20, got %d", seq.Len())
		}
		for i := 0; i < seq.Len(); i++ {
			want := i >= 2 && seq.At(i) == seq.At(i-2)
			if seq.IsMatch(i) != want {
				t.Fatalf("block %d index %d: IsMatch=%v, want %v", b, i, seq.IsMatch(i), want)
			}
		}
	}
}

func TestSequenceTargetRate(t *testing.T) {
	gen := newTestGenerator(t, nil)
	matches, checkable := 0, 0
	for b := 0; b < 1000; b++ {
		seq := gen.Next()
		for i := 2; i < seq.Len(); i++ {
			checkable++
			if seq.IsMatch(i) {
				matches++
			}
		}
	}
	rate := float64(matches) / float64(checkable)
	if math.Abs(rate-0.3) > 0.02 {
		t.Fatalf("expected target rate near 0.3, got %.4f", rate)
	}
}

func TestSequenceNoAccidentalMatches(t *testing.T) {
	gen := newTestGenerator(t, func(c *Config) {
		c.MatchProbability = 0
		c.Alphabet = []string{"A", "B"}
	})
	for b := 0; b < 500; b++ {
		seq := gen.Next()
		for i := 2; i < seq.Len(); i++ {
			if seq.IsMatch(i) {
				t.Fatalf("unforced match at block %d index %d: %v", b, i, seq.Symbols())
			}
		}
	}
}

func TestSequenceAlwaysMatches(t *testing.T) {
	gen := newTestGenerator(t, func(c *Config) { c.MatchProbability = 1 })
	seq := gen.Next()
	for i := 2; i < seq.Len(); i++ {
		if !seq.IsMatch(i) {
			t.Fatalf("expected forced match at %d: %v", i, seq.Symbols())
		}
	}
}

func TestSequenceLeadingTrialsNeverMatch(t *testing.T) {
	gen := newTestGenerator(t, func(c *Config) { c.N = 3 })
	seq := gen.Next()
	for i := 0; i < 3; i++ {
		if seq.IsMatch(i) {
			t.Fatalf("index %d is before lag and must not match", i)
		}
	}
	if seq.IsMatch(-1) || seq.IsMatch(seq.Len()) {
		t.Fatal("out of range indices must not match")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"single symbol":     func(c *Config) { c.Alphabet = []string{"A"} },
		"empty alphabet":    func(c *Config) { c.Alphabet = nil },
		"duplicate symbols": func(c *Config) { c.Alphabet = []string{"A", "B", "A"} },
		"zero lag":          func(c *Config) { c.N = 0 },
		"short block":       func(c *Config) { c.ItemsPerBlock = 2 },
		"no blocks":         func(c *Config) { c.TotalBlocks = 0 },
		"probability > 1":   func(c *Config) { c.MatchProbability = 1.5 },
		"zero interval":     func(c *Config) { c.Interval = 0 },
		"negative pause":    func(c *Config) { c.BlockPause = -1 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
		if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: New should fail fast, got %v", name, err)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if got := DefaultConfig().CheckableTrials(); got != 54 {
		t.Fatalf("expected 54 checkable trials, got %d", got)
	}
}

func TestClassifyAndScore(t *testing.T) {
	if Classify(true, true) != OutcomeHit || Classify(true, false) != OutcomeFalseAlarm ||
		Classify(false, true) != OutcomeMiss || Classify(false, false) != OutcomeCorrectRejection {
		t.Fatal("classification table mismatch")
	}
	if Score(Counters{}) != 0 || Accuracy(Counters{}) != 0 {
		t.Fatal("empty counters should score 0 with 0 accuracy")
	}
	c := Counters{Hits: 3, Misses: 1, FalseAlarms: 2, CorrectRejections: 5}
	if Score(c) != 5.5 {
		t.Fatalf("expected score 5.5, got %v", Score(c))
	}
	// 8 correct of 11 decisions
	if Accuracy(c) != 73 {
		t.Fatalf("expected accuracy 73, got %d", Accuracy(c))
	}
}
