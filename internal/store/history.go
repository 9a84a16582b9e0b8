package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiliankoe/nback/internal/nback"
)

const historyKey = "history"

const DefaultHistoryLimit = 100

// History keeps the most recent game results, newest first.
type History struct {
	mu    sync.Mutex
	kv    KV
	limit int
	now   func() time.Time
}

func NewHistory(kv KV, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{kv: kv, limit: limit, now: time.Now}
}

func (h *History) AddGameResult(r nback.GameResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx := context.Background()
	list, err := h.load(ctx)
	if err != nil {
		return err
	}
	if r.PlayedAt.IsZero() {
		r.PlayedAt = h.now().UTC()
	}
	list = append([]nback.GameResult{r}, list...)
	if len(list) > h.limit {
		list = list[:h.limit]
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return h.kv.Set(ctx, historyKey, string(b))
}

// Recent returns up to n results, all of them when n <= 0.
func (h *History) Recent(ctx context.Context, n int) ([]nback.GameResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list, nil
}

func (h *History) load(ctx context.Context) ([]nback.GameResult, error) {
	raw, err := h.kv.Get(ctx, historyKey)
	if errors.Is(err, ErrNotFound) {
		return []nback.GameResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []nback.GameResult
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return list, nil
}

// MultiHistory fans a result out to several sinks, returning every failure.
type MultiHistory []nback.HistorySink

func (m MultiHistory) AddGameResult(r nback.GameResult) error {
	var errs []error
	for _, s := range m {
		if err := s.AddGameResult(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
