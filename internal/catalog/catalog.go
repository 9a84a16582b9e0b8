// Package catalog is the closed set of games in the collection and the
// dispatch table that launches the playable ones.
package catalog

import (
	"errors"
	"fmt"

	"github.com/kiliankoe/nback/internal/nback"
)

var (
	ErrUnknownGame = errors.New("unknown game")
	ErrNotPlayable = errors.New("game has no engine on this server")
)

type GameID int

const (
	NBack GameID = iota + 1
	ReactionTime
	ColorMatch
	ShapeMatch
	MemoryGrid
	SequenceRecall
)

type Descriptor struct {
	ID       GameID `json:"-"`
	Key      string `json:"id"`
	Title    string `json:"title"`
	Playable bool   `json:"playable"`
}

var descriptors = []Descriptor{
	{ID: NBack, Key: "nback", Title: "N-Back"},
	{ID: ReactionTime, Key: "reaction-time", Title: "Reaction Time"},
	{ID: ColorMatch, Key: "color-match", Title: "Color Match"},
	{ID: ShapeMatch, Key: "shape-match", Title: "Shape Match"},
	{ID: MemoryGrid, Key: "memory-grid", Title: "Memory Grid"},
	{ID: SequenceRecall, Key: "sequence-recall", Title: "Sequence Recall"},
}

// Launcher builds a ready-to-start game for the given difficulty.
type Launcher func(cfg nback.Config, opts ...nback.Option) (*nback.Game, error)

var launchers = map[GameID]Launcher{
	NBack: func(cfg nback.Config, opts ...nback.Option) (*nback.Game, error) {
		return nback.New(cfg, append([]nback.Option{nback.WithGameID(NBack.String())}, opts...)...)
	},
}

func (id GameID) String() string {
	for _, d := range descriptors {
		if d.ID == id {
			return d.Key
		}
	}
	return fmt.Sprintf("GameID(%d)", int(id))
}

func Parse(key string) (GameID, error) {
	for _, d := range descriptors {
		if d.Key == key {
			return d.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGame, key)
}

// All lists every game in display order.
func All() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	for i, d := range descriptors {
		_, d.Playable = launchers[d.ID]
		out[i] = d
	}
	return out
}

func Launch(id GameID, cfg nback.Config, opts ...nback.Option) (*nback.Game, error) {
	l, ok := launchers[id]
	if !ok {
		if _, err := Parse(id.String()); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrNotPlayable, id)
	}
	return l(cfg, opts...)
}
