// Package session keeps one location controller per open ride request
// screen and tears idle ones down.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwise1/ride_pinpoint/internal/location"
	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/lucsky/cuid"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

const recordTimeout = 5 * time.Second

// Publisher receives every projection a session produces.
type Publisher interface {
	Publish(sessionID string, p model.Projection)
	CloseSession(sessionID string)
}

// SelectionRecorder stores applied suggestions as recent places.
type SelectionRecorder interface {
	RecordSelection(ctx context.Context, userID string, field model.LocationField, s model.AddressSuggestion, coord model.Coordinate) error
}

type Session struct {
	ID         string
	UserID     string
	CreatedAt  time.Time
	Controller *location.Controller

	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

type Params struct {
	Geocoder  lookup.GeocodingClient
	Search    lookup.AddressSearchClient
	Router    lookup.RoutingClient
	Settings  location.Settings
	IdleTTL   time.Duration
	Publisher Publisher
	Recorder  SelectionRecorder
	Logger    *zap.Logger
}

type Manager struct {
	params Params
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(p Params) *Manager {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		params:   p,
		logger:   logger.Named("session"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a controller for a new screen owned by userID.
func (m *Manager) Create(userID string) *Session {
	s := &Session{
		ID:        cuid.New(),
		UserID:    userID,
		CreatedAt: m.now(),
	}
	s.touch(s.CreatedAt)

	logger := m.logger.With(zap.String("session_id", s.ID))
	opts := []location.Option{}
	if pub := m.params.Publisher; pub != nil {
		opts = append(opts, location.WithOnChange(func(p model.Projection) {
			pub.Publish(s.ID, p)
		}))
	}
	if rec := m.params.Recorder; rec != nil && userID != "" {
		opts = append(opts, location.WithOnSelection(func(f model.LocationField, sug model.AddressSuggestion, c model.Coordinate) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
				defer cancel()
				if err := rec.RecordSelection(ctx, userID, f, sug, c); err != nil {
					logger.Warn("error recording recent place", zap.Error(err))
				}
			}()
		}))
	}
	s.Controller = location.New(m.params.Geocoder, m.params.Search, m.params.Router, m.params.Settings, logger, opts...)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logger.Info("session created", zap.String("user_id", userID))
	return s
}

// Get returns the session and marks it as active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Touch marks the session as active without handing it out. Streams use it
// on every ping so a listening screen is not reaped.
func (m *Manager) Touch(id string) error {
	_, err := m.Get(id)
	return err
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.teardown(s)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap tears down sessions idle longer than IdleTTL and reports how many.
func (m *Manager) Reap() int {
	if m.params.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.params.IdleTTL)

	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.teardown(s)
	}
	return len(idle)
}

// Run reaps idle sessions until ctx is done, then closes the rest.
func (m *Manager) Run(ctx context.Context) {
	interval := m.params.IdleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				m.logger.Info("reaped idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.teardown(s)
	}
}

func (m *Manager) teardown(s *Session) {
	s.Controller.Close()
	if m.params.Publisher != nil {
		m.params.Publisher.CloseSession(s.ID)
	}
	m.logger.Info("session closed", zap.String("session_id", s.ID))
}
