package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiliankoe/nback/internal/catalog"
	"github.com/kiliankoe/nback/internal/config"
	"github.com/kiliankoe/nback/internal/nback"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotOwner        = errors.New("not session owner")
	ErrUnknownProfile  = errors.New("unknown profile")
)

// Session is one player's game. The owner token gates every action.
type Session struct {
	Code       string    `json:"code"`
	GameID     string    `json:"gameId"`
	Profile    string    `json:"profile"`
	CreatedAt  time.Time `json:"createdAt"`
	OwnerToken string    `json:"-"`

	Game *nback.Game `json:"-"`
}

func (s *Session) authorize(token string) error {
	if token != s.OwnerToken {
		return ErrNotOwner
	}
	return nil
}

func (s *Session) Start(token string) error {
	if err := s.authorize(token); err != nil {
		return err
	}
	s.Game.StartGame()
	return nil
}

// Press reports whether the answer was accepted for the current trial.
func (s *Session) Press(token string) (nback.Outcome, bool, error) {
	if err := s.authorize(token); err != nil {
		return nback.OutcomeNone, false, err
	}
	o, ok := s.Game.Press()
	return o, ok, nil
}

func (s *Session) Stop(token string) error {
	if err := s.authorize(token); err != nil {
		return err
	}
	s.Game.Stop()
	return nil
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	active   string // most recent session, the only one in single-session mode

	profiles config.Profiles
	single   bool
	gameOpts []nback.Option

	hookMu  sync.Mutex
	onClose []func(code string)
}

// NewManager creates a manager; gameOpts are applied to every game it
// launches (scheduler, sinks, logger).
func NewManager(profiles config.Profiles, single bool, gameOpts ...nback.Option) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		profiles: profiles,
		single:   single,
		gameOpts: gameOpts,
	}
}

func (m *Manager) Create(gameKey, profile string) (code string, ownerToken string, err error) {
	if gameKey == "" {
		gameKey = catalog.NBack.String()
	}
	id, err := catalog.Parse(gameKey)
	if err != nil {
		return "", "", err
	}
	if profile == "" {
		profile = config.DefaultProfile
	}
	cfg, ok := m.profiles.Get(profile)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	g, err := catalog.Launch(id, cfg, m.gameOpts...)
	if err != nil {
		return "", "", err
	}

	m.mu.Lock()
	replaced := ""
	if m.single && m.active != "" {
		if prev := m.sessions[m.active]; prev != nil {
			prev.Game.Stop()
			delete(m.sessions, m.active)
			replaced = m.active
		}
	}
	code = randomCode(5)
	for m.sessions[code] != nil {
		code = randomCode(5)
	}
	ownerToken = uuid.NewString()
	m.sessions[code] = &Session{
		Code:       code,
		GameID:     id.String(),
		Profile:    profile,
		CreatedAt:  time.Now().UTC(),
		OwnerToken: ownerToken,
		Game:       g,
	}
	m.active = code
	m.mu.Unlock()

	if replaced != "" {
		m.closed(replaced)
	}
	return code, ownerToken, nil
}

// OnClose registers fn to run after a session is removed, whether by Close,
// single-session replacement or Shutdown. Hooks run without the manager lock.
func (m *Manager) OnClose(fn func(code string)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onClose = append(m.onClose, fn)
}

func (m *Manager) closed(codes ...string) {
	m.hookMu.Lock()
	hooks := append(([]func(string))(nil), m.onClose...)
	m.hookMu.Unlock()
	for _, code := range codes {
		for _, fn := range hooks {
			fn(code)
		}
	}
}

func (m *Manager) Get(code string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sessions[code]
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Active() (string, *Session) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return "", nil
	}
	return m.active, m.sessions[m.active]
}

// Close stops the session's game, cancelling its timers, and forgets it.
func (m *Manager) Close(code, token string) error {
	m.mu.Lock()
	s := m.sessions[code]
	if s == nil {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if err := s.authorize(token); err != nil {
		m.mu.Unlock()
		return err
	}
	s.Game.Stop()
	delete(m.sessions, code)
	if m.active == code {
		m.active = ""
	}
	m.mu.Unlock()

	m.closed(code)
	return nil
}

// Shutdown stops every game; used on server exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	codes := make([]string, 0, len(m.sessions))
	for code, s := range m.sessions {
		s.Game.Stop()
		delete(m.sessions, code)
		codes = append(codes, code)
	}
	m.active = ""
	m.mu.Unlock()

	m.closed(codes...)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
