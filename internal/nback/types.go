package nback

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusIntro      Status = "intro"
	StatusPlaying    Status = "playing"
	StatusBlockPause Status = "blockPause"
	StatusResults    Status = "results"
)

type Outcome string

const (
	OutcomeNone             Outcome = ""
	OutcomeHit              Outcome = "hit"
	OutcomeMiss             Outcome = "miss"
	OutcomeFalseAlarm       Outcome = "falseAlarm"
	OutcomeCorrectRejection Outcome = "correctRejection"
)

var ErrInvalidConfig = errors.New("invalid n-back config")

// DefaultAlphabet is the consonant set commonly used for verbal n-back tasks.
var DefaultAlphabet = []string{"C", "H", "K", "L", "Q", "R", "S", "T"}

type Config struct {
	Alphabet         []string      `json:"alphabet" yaml:"alphabet"`
	N                int           `json:"n" yaml:"n"`
	ItemsPerBlock    int           `json:"itemsPerBlock" yaml:"itemsPerBlock"`
	TotalBlocks      int           `json:"totalBlocks" yaml:"totalBlocks"`
	MatchProbability float64       `json:"matchProbability" yaml:"matchProbability"`
	InitialDelay     time.Duration `json:"initialDelay" yaml:"initialDelay"`
	Interval         time.Duration `json:"interval" yaml:"interval"`
	BlockPause       time.Duration `json:"blockPause" yaml:"blockPause"`
}

func DefaultConfig() Config {
	return Config{
		Alphabet:         append([]string(nil), DefaultAlphabet...),
		N:                2,
		ItemsPerBlock:    20,
		TotalBlocks:      3,
		MatchProbability: 0.3,
		InitialDelay:     500 * time.Millisecond,
		Interval:         2500 * time.Millisecond,
		BlockPause:       3000 * time.Millisecond,
	}
}

// Validate reports the first problem with c, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if len(c.Alphabet) < 2 {
		return fmt.Errorf("%w: alphabet needs at least 2 symbols, got %d", ErrInvalidConfig, len(c.Alphabet))
	}
	seen := make(map[string]bool, len(c.Alphabet))
	for _, s := range c.Alphabet {
		if seen[s] {
			return fmt.Errorf("%w: duplicate symbol %q in alphabet", ErrInvalidConfig, s)
		}
		seen[s] = true
	}
	if c.N < 1 {
		return fmt.Errorf("%w: n must be >= 1, got %d", ErrInvalidConfig, c.N)
	}
	if c.ItemsPerBlock <= c.N {
		return fmt.Errorf("%w: itemsPerBlock (%d) must exceed n (%d)", ErrInvalidConfig, c.ItemsPerBlock, c.N)
	}
	if c.TotalBlocks < 1 {
		return fmt.Errorf("%w: totalBlocks must be >= 1, got %d", ErrInvalidConfig, c.TotalBlocks)
	}
	if c.MatchProbability < 0 || c.MatchProbability > 1 {
		return fmt.Errorf("%w: matchProbability must be within [0,1], got %v", ErrInvalidConfig, c.MatchProbability)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.InitialDelay < 0 || c.BlockPause < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CheckableTrials is the number of trials classified over a whole game.
func (c Config) CheckableTrials() int {
	return c.TotalBlocks * (c.ItemsPerBlock - c.N)
}

// Counters are cumulative for the whole game: block boundaries do not reset
// them, only StartGame does.
type Counters struct {
	Hits              int `json:"hits"`
	Misses            int `json:"misses"`
	FalseAlarms       int `json:"falseAlarms"`
	CorrectRejections int `json:"correctRejections"`
}

func (c Counters) Total() int {
	return c.Hits + c.Misses + c.FalseAlarms + c.CorrectRejections
}

func (c *Counters) add(o Outcome) {
	switch o {
	case OutcomeHit:
		c.Hits++
	case OutcomeMiss:
		c.Misses++
	case OutcomeFalseAlarm:
		c.FalseAlarms++
	case OutcomeCorrectRejection:
		c.CorrectRejections++
	}
}

// Snapshot is the read-only view handed to subscribers. It never exposes
// upcoming trials.
type Snapshot struct {
	Status      Status   `json:"status"`
	Block       int      `json:"block"`
	TotalBlocks int      `json:"totalBlocks"`
	Position    int      `json:"position"`
	Length      int      `json:"length"`
	N           int      `json:"n"`
	Current     string   `json:"current"`
	CanAnswer   bool     `json:"canAnswer"`
	Answered    bool     `json:"answered"`
	Counters    Counters `json:"counters"`
	Score       float64  `json:"score"`
	Accuracy    int      `json:"accuracy"`
}

type GameResult struct {
	GameID      string    `json:"gameId"`
	Score       int       `json:"score"`
	Accuracy    int       `json:"accuracy"`
	AverageTime int       `json:"averageTime"` // milliseconds
	PlayedAt    time.Time `json:"playedAt"`
}

type ScoreSink interface {
	AddScore(gameID string, points int) error
}

type HistorySink interface {
	AddGameResult(r GameResult) error
}
