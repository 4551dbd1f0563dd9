package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/playscope/playkit/internal/loader"
	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/internal/state"
	"github.com/playscope/playkit/internal/telemetry"
	"github.com/playscope/playkit/pkg/models"
)

// Player is one managed playback surface: a media element with its
// controller and track-state store
type Player struct {
	ID         string
	Element    *media.SimElement
	Controller *Controller
	Store      *state.Store

	mu       sync.Mutex
	lastUsed time.Time
}

// touch marks the player as recently used
func (p *Player) touch() {
	p.mu.Lock()
	p.lastUsed = time.Now()
	p.mu.Unlock()
}

// LastUsed reports the last command time
func (p *Player) LastUsed() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUsed
}

// ManagerDeps are the shared services every managed player uses
type ManagerDeps struct {
	Registry  *loader.Registry
	Prefs     PreferenceLoader
	Persister state.Persister
	Publisher telemetry.Publisher
	Log       zerolog.Logger
}

// Manager owns the daemon's playback surfaces. Each player is one simulated
// media element driven by its own controller; idle players are reaped by the
// janitor.
type Manager struct {
	mu      sync.RWMutex
	players map[string]*Player
	deps    ManagerDeps
}

// NewManager creates an empty player manager
func NewManager(deps ManagerDeps) *Manager {
	if deps.Publisher == nil {
		deps.Publisher = telemetry.NopPublisher{}
	}
	return &Manager{
		players: make(map[string]*Player),
		deps:    deps,
	}
}

// Create builds a new player and opens its first session
func (m *Manager) Create(ctx context.Context, profile string, cfg Config, sources []models.Source) (*Player, *Handle, error) {
	el := media.NewSimElement()
	store := state.NewStore(profile, m.deps.Persister, m.deps.Log)

	cfg.Profile = profile
	ctrl := NewController(el, store, m.deps.Registry, m.deps.Prefs, m.deps.Publisher, m.deps.Log, cfg)

	handle, err := ctrl.OpenSession(ctx, sources)
	if err != nil {
		ctrl.Close()
		return nil, nil, err
	}

	p := &Player{
		ID:         uuid.New().String(),
		Element:    el,
		Controller: ctrl,
		Store:      store,
		lastUsed:   time.Now(),
	}

	m.mu.Lock()
	m.players[p.ID] = p
	m.mu.Unlock()

	return p, handle, nil
}

// Get returns a player and marks it used
func (m *Manager) Get(id string) (*Player, error) {
	m.mu.RLock()
	p, ok := m.players[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session: unknown player %q", id)
	}
	p.touch()
	return p, nil
}

// Close tears down one player
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	p, ok := m.players[id]
	delete(m.players, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session: unknown player %q", id)
	}
	p.Controller.Close()
	return nil
}

// CloseIdle closes every player unused for longer than maxIdle and returns
// how many were reaped
func (m *Manager) CloseIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*Player
	for id, p := range m.players {
		if p.LastUsed().Before(cutoff) {
			stale = append(stale, p)
			delete(m.players, id)
		}
	}
	m.mu.Unlock()

	for _, p := range stale {
		p.Controller.Close()
	}
	return len(stale)
}

// Count reports how many players are live
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// CloseAll tears down every player, for daemon shutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	players := m.players
	m.players = make(map[string]*Player)
	m.mu.Unlock()

	for _, p := range players {
		p.Controller.Close()
	}
}
