package session

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiliankoe/nback/internal/catalog"
	"github.com/kiliankoe/nback/internal/config"
	"github.com/kiliankoe/nback/internal/nback"
)

func newTestManager(single bool) (*Manager, *nback.ManualScheduler) {
	sched := nback.NewManualScheduler(time.Unix(0, 0))
	return NewManager(config.BuiltinProfiles(), single, nback.WithScheduler(sched), nback.WithLogger(zerolog.Nop())), sched
}

func TestNewManager(t *testing.T) {
	m, _ := newTestManager(false)
	if m.sessions == nil {
		t.Fatal("sessions map should be initialized")
	}
	if code, s := m.Active(); code != "" || s != nil {
		t.Fatal("active session should be empty initially")
	}
}

func TestCreateSession(t *testing.T) {
	m, _ := newTestManager(false)
	code, token, err := m.Create("", "")
	if err != nil {
		t.Fatalf("should be able to create session: %v", err)
	}
	if code == "" || token == "" {
		t.Fatal("code and owner token should not be empty")
	}
	s, err := m.Get(code)
	if err != nil {
		t.Fatalf("should be able to retrieve created session: %v", err)
	}
	if s.GameID != catalog.NBack.String() {
		t.Fatalf("expected game %s, got %s", catalog.NBack, s.GameID)
	}
	if s.Profile != config.DefaultProfile {
		t.Fatalf("expected profile %s, got %s", config.DefaultProfile, s.Profile)
	}
	if s.Game.Status() != nback.StatusIntro {
		t.Fatalf("expected intro, got %s", s.Game.Status())
	}
	if active, _ := m.Active(); active != code {
		t.Fatalf("expected active %s, got %s", code, active)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	m, _ := newTestManager(false)
	if _, _, err := m.Create("nback", "nightmare"); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
	if _, _, err := m.Create("chess", ""); !errors.Is(err, catalog.ErrUnknownGame) {
		t.Fatalf("expected ErrUnknownGame, got %v", err)
	}
	if _, _, err := m.Create("memory-grid", ""); !errors.Is(err, catalog.ErrNotPlayable) {
		t.Fatalf("expected ErrNotPlayable, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatal("failed creates must not register sessions")
	}
}

func TestOwnerTokenGatesActions(t *testing.T) {
	m, sched := newTestManager(false)
	code, token, _ := m.Create("nback", "easy")
	s, _ := m.Get(code)

	if err := s.Start("intruder"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if s.Game.Status() != nback.StatusIntro {
		t.Fatal("unauthorized start must not change state")
	}
	if err := s.Start(token); err != nil {
		t.Fatalf("owner should be able to start: %v", err)
	}
	cfg := s.Game.Config()
	sched.Advance(cfg.InitialDelay + time.Duration(cfg.N)*cfg.Interval)
	if _, _, err := s.Press("intruder"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, ok, err := s.Press(token); err != nil || !ok {
		t.Fatalf("owner press should be accepted: %v %v", ok, err)
	}
	if err := s.Stop(token); err != nil {
		t.Fatalf("owner should be able to stop: %v", err)
	}
	if sched.Pending() != 0 {
		t.Fatal("stop should cancel timers")
	}
}

func TestCloseSession(t *testing.T) {
	m, sched := newTestManager(false)
	code, token, _ := m.Create("nback", "")
	s, _ := m.Get(code)
	s.Start(token)

	if err := m.Close(code, "wrong"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := m.Close(code, token); err != nil {
		t.Fatalf("should be able to close: %v", err)
	}
	if _, err := m.Get(code); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if sched.Pending() != 0 {
		t.Fatal("closing must cancel the game's timers")
	}
	if err := m.Close(code, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second close, got %v", err)
	}
}

func TestSingleSessionReplacesPrevious(t *testing.T) {
	m, sched := newTestManager(true)
	first, token, _ := m.Create("nback", "")
	s, _ := m.Get(first)
	s.Start(token)

	second, _, err := m.Create("nback", "hard")
	if err != nil {
		t.Fatalf("should be able to create second session: %v", err)
	}
	if _, err := m.Get(first); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("previous session should be removed in single-session mode")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Len())
	}
	if active, _ := m.Active(); active != second {
		t.Fatalf("expected active %s, got %s", second, active)
	}
	if sched.Pending() != 0 {
		t.Fatal("replaced game must be stopped")
	}
}

func TestShutdown(t *testing.T) {
	m, sched := newTestManager(false)
	for i := 0; i < 3; i++ {
		code, token, _ := m.Create("nback", "")
		s, _ := m.Get(code)
		s.Start(token)
	}
	m.Shutdown()
	if m.Len() != 0 || sched.Pending() != 0 {
		t.Fatalf("shutdown should stop everything, %d sessions %d timers left", m.Len(), sched.Pending())
	}
}

func TestCloseHooks(t *testing.T) {
	m, _ := newTestManager(true)
	var closed []string
	m.OnClose(func(code string) { closed = append(closed, code) })

	first, _, _ := m.Create("nback", "")
	second, token, _ := m.Create("nback", "")
	if len(closed) != 1 || closed[0] != first {
		t.Fatalf("replacement should report %s, got %v", first, closed)
	}

	if err := m.Close(second, "wrong"); err == nil {
		t.Fatal("unauthorized close should fail")
	}
	if len(closed) != 1 {
		t.Fatal("failed close must not run hooks")
	}
	if err := m.Close(second, token); err != nil {
		t.Fatalf("should be able to close: %v", err)
	}
	if len(closed) != 2 || closed[1] != second {
		t.Fatalf("close should report %s, got %v", second, closed)
	}

	third, _, _ := m.Create("nback", "")
	m.Shutdown()
	if len(closed) != 3 || closed[2] != third {
		t.Fatalf("shutdown should report %s, got %v", third, closed)
	}
}
