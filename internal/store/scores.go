package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const scoresKey = "scores"

type Total struct {
	Points int `json:"points"`
	Plays  int `json:"plays"`
	Best   int `json:"best"`
}

// Scores accumulates per-game point totals in a KV store.
type Scores struct {
	mu sync.Mutex
	kv KV
}

func NewScores(kv KV) *Scores { return &Scores{kv: kv} }

func (s *Scores) AddScore(gameID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := context.Background()
	totals, err := s.load(ctx)
	if err != nil {
		return err
	}
	t := totals[gameID]
	t.Points += points
	t.Plays++
	if t.Plays == 1 || points > t.Best {
		t.Best = points
	}
	totals[gameID] = t
	b, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	return s.kv.Set(ctx, scoresKey, string(b))
}

func (s *Scores) Totals(ctx context.Context) (map[string]Total, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Scores) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Remove(ctx, scoresKey)
}

func (s *Scores) load(ctx context.Context) (map[string]Total, error) {
	totals := map[string]Total{}
	raw, err := s.kv.Get(ctx, scoresKey)
	if errors.Is(err, ErrNotFound) {
		return totals, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &totals); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return totals, nil
}
