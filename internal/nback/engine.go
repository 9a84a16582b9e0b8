package nback

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultGameID = "nback"

// Game owns the whole state of one n-back game. Every mutation goes through
// StartGame, Press, Stop or a callback scheduled by the game itself, all
// serialized by mu. Scheduled callbacks carry the epoch they were created in
// and are dropped once the game has been restarted or stopped.
type Game struct {
	mu sync.Mutex

	id      string
	cfg     Config
	gen     *Generator
	sched   Scheduler
	log     zerolog.Logger
	scores  ScoreSink
	history HistorySink

	status   Status
	block    int
	position int
	seq      Sequence
	answered bool
	shownAt  time.Time
	counters Counters

	reactionTotal time.Duration
	reactionCount int

	epoch        uint64
	advanceTimer Handle
	pauseTimer   Handle

	listeners    []listener
	nextListener int
}

type listener struct {
	id int
	fn func(Snapshot)
}

type Option func(*Game)

func WithScheduler(s Scheduler) Option { return func(g *Game) { g.sched = s } }

func WithLogger(l zerolog.Logger) Option { return func(g *Game) { g.log = l } }

func WithScoreSink(s ScoreSink) Option { return func(g *Game) { g.scores = s } }

func WithHistorySink(h HistorySink) Option { return func(g *Game) { g.history = h } }

func WithGameID(id string) Option { return func(g *Game) { g.id = id } }

// WithRand fixes the random source used for sequence generation.
func WithRand(r *rand.Rand) Option {
	return func(g *Game) { g.gen.rng = r }
}

// New validates cfg and returns a game in the intro state. Nothing is
// scheduled until StartGame.
func New(cfg Config, opts ...Option) (*Game, error) {
	gen, err := NewGenerator(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return nil, err
	}
	g := &Game{
		id:       DefaultGameID,
		cfg:      cfg,
		gen:      gen,
		log:      log.Logger,
		status:   StatusIntro,
		position: -1,
	}
	for _, o := range opts {
		o(g)
	}
	if g.sched == nil {
		g.sched = NewTimerScheduler()
	}
	g.log = g.log.With().Str("game", g.id).Logger()
	return g, nil
}

func (g *Game) Config() Config { return g.cfg }

func (g *Game) ID() string { return g.id }

// StartGame resets counters and begins block 1. Calling it from any state,
// including mid-block, is a full restart.
func (g *Game) StartGame() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelTimersLocked()
	g.counters = Counters{}
	g.reactionTotal, g.reactionCount = 0, 0
	g.block = 1
	g.beginBlockLocked()
	g.log.Debug().Int("blocks", g.cfg.TotalBlocks).Int("n", g.cfg.N).Msg("game started")
	g.notifyLocked()
}

// Stop cancels all pending timers and returns to intro. Counters of the
// abandoned game stay readable until the next StartGame; no result is reported.
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusIntro {
		return
	}
	g.cancelTimersLocked()
	g.status = StatusIntro
	g.position = -1
	g.answered = false
	g.log.Debug().Msg("game stopped")
	g.notifyLocked()
}

// Press records a "match" answer for the current trial. It reports the
// outcome and whether the press was accepted; presses while the trial is not
// answerable or was already answered change nothing.
func (g *Game) Press() (Outcome, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.canAnswerLocked() || g.answered {
		return OutcomeNone, false
	}
	g.answered = true
	o := Classify(true, g.seq.IsMatch(g.position))
	g.counters.add(o)
	g.reactionTotal += g.sched.Now().Sub(g.shownAt)
	g.reactionCount++
	g.log.Debug().Int("block", g.block).Int("position", g.position).Str("outcome", string(o)).Msg("press")
	g.notifyLocked()
	return o, true
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Game) Counters() Counters {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters
}

// Sequence returns the active block's trials, including ones not yet shown.
// Presentation layers should use Snapshot instead.
func (g *Game) Sequence() Sequence {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Sequence{symbols: g.seq.Symbols(), n: g.seq.n}
}

// Result describes the finished game; ok is false unless status is results.
func (g *Game) Result() (GameResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusResults {
		return GameResult{}, false
	}
	return g.resultLocked(), true
}

// Subscribe registers fn for every state change. fn runs while the game is
// locked and must not call back into the Game.
func (g *Game) Subscribe(fn func(Snapshot)) (cancel func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextListener++
	id := g.nextListener
	g.listeners = append(g.listeners, listener{id: id, fn: fn})
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, l := range g.listeners {
			if l.id == id {
				g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

func (g *Game) beginBlockLocked() {
	g.seq = g.gen.Next()
	g.position = -1
	g.answered = false
	g.status = StatusPlaying
	g.advanceTimer = g.scheduleLocked(g.cfg.InitialDelay, g.advanceLocked)
}

// advanceLocked finalizes the current trial and shows the next one, or ends
// the block when the sequence is exhausted.
func (g *Game) advanceLocked() {
	g.advanceTimer = 0
	if g.status != StatusPlaying {
		return
	}
	if g.canAnswerLocked() && !g.answered {
		g.counters.add(Classify(false, g.seq.IsMatch(g.position)))
	}
	if g.position+1 >= g.seq.Len() {
		g.endBlockLocked()
		return
	}
	g.position++
	g.answered = false
	g.shownAt = g.sched.Now()
	g.advanceTimer = g.scheduleLocked(g.cfg.Interval, g.advanceLocked)
	g.notifyLocked()
}

func (g *Game) endBlockLocked() {
	if g.block < g.cfg.TotalBlocks {
		g.status = StatusBlockPause
		g.pauseTimer = g.scheduleLocked(g.cfg.BlockPause, g.resumeLocked)
		g.log.Debug().Int("block", g.block).Msg("block finished")
		g.notifyLocked()
		return
	}
	g.status = StatusResults
	res := g.resultLocked()
	g.log.Info().Int("score", res.Score).Int("accuracy", res.Accuracy).Int("averageTime", res.AverageTime).Msg("game finished")
	g.reportLocked(res)
	g.notifyLocked()
}

func (g *Game) resumeLocked() {
	g.pauseTimer = 0
	if g.status != StatusBlockPause {
		return
	}
	g.block++
	g.beginBlockLocked()
	g.notifyLocked()
}

func (g *Game) reportLocked(res GameResult) {
	if g.scores != nil {
		if err := g.scores.AddScore(res.GameID, res.Score); err != nil {
			g.log.Error().Err(err).Msg("failed to record score")
		}
	}
	if g.history != nil {
		if err := g.history.AddGameResult(res); err != nil {
			g.log.Error().Err(err).Msg("failed to record game result")
		}
	}
}

func (g *Game) resultLocked() GameResult {
	avg := 0
	if g.reactionCount > 0 {
		mean := g.reactionTotal / time.Duration(g.reactionCount)
		avg = int(math.Round(float64(mean) / float64(time.Millisecond)))
	}
	return GameResult{
		GameID:      g.id,
		Score:       int(math.Round(Score(g.counters))),
		Accuracy:    Accuracy(g.counters),
		AverageTime: avg,
		PlayedAt:    g.sched.Now().UTC(),
	}
}

func (g *Game) canAnswerLocked() bool {
	return g.status == StatusPlaying && g.position >= g.cfg.N
}

// scheduleLocked wraps fn so it runs under mu and only in the epoch it was
// scheduled in.
func (g *Game) scheduleLocked(d time.Duration, fn func()) Handle {
	epoch := g.epoch
	return g.sched.Schedule(d, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.epoch != epoch {
			return
		}
		fn()
	})
}

func (g *Game) cancelTimersLocked() {
	g.epoch++
	if g.advanceTimer != 0 {
		g.sched.Cancel(g.advanceTimer)
		g.advanceTimer = 0
	}
	if g.pauseTimer != 0 {
		g.sched.Cancel(g.pauseTimer)
		g.pauseTimer = 0
	}
}

func (g *Game) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:      g.status,
		Block:       g.block,
		TotalBlocks: g.cfg.TotalBlocks,
		Position:    g.position,
		Length:      g.seq.Len(),
		N:           g.cfg.N,
		CanAnswer:   g.canAnswerLocked(),
		Answered:    g.answered,
		Counters:    g.counters,
		Score:       Score(g.counters),
		Accuracy:    Accuracy(g.counters),
	}
	if g.status == StatusPlaying && g.position >= 0 && g.position < g.seq.Len() {
		s.Current = g.seq.At(g.position)
	}
	return s
}

func (g *Game) notifyLocked() {
	if len(g.listeners) == 0 {
		return
	}
	s := g.snapshotLocked()
	for _, l := range g.listeners {
		l.fn(s)
	}
}
