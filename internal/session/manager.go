package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calc-back/internal/portfolio"
	"github.com/calc-back/pkg/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Session owns the per-user calculator state: the line items being composed
// and the history ledger. All of it is volatile and scoped to the session.
type Session struct {
	Token     string
	Portfolio *portfolio.Portfolio
	History   *portfolio.Ledger

	lastSeen time.Time
}

// Manager tracks sessions by opaque token and evicts idle ones
type Manager struct {
	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	ttl             time.Duration
	cleanupInterval time.Duration
	historyLimit    int

	running bool
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *logrus.Entry
}

// NewManager creates a new session manager
func NewManager(cfg *config.SessionConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		sessions:        make(map[string]*Session),
		ttl:             cfg.TTL,
		cleanupInterval: cfg.CleanupInterval,
		historyLimit:    cfg.HistoryLimit,
		done:            make(chan struct{}),
		logger:          logger.WithField("component", "session-manager"),
	}
}

// Start starts the idle-session janitor
func (sm *Manager) Start(ctx context.Context) error {
	if sm.running {
		return fmt.Errorf("session manager already running")
	}
	sm.running = true

	sm.wg.Add(1)
	go sm.janitorLoop(ctx)

	sm.logger.Info("Session manager started")
	return nil
}

// Stop stops the session manager
func (sm *Manager) Stop() error {
	if !sm.running {
		return nil
	}

	close(sm.done)
	sm.wg.Wait()
	sm.running = false

	sm.logger.Info("Session manager stopped")
	return nil
}

// Create allocates a new session with a fresh token
func (sm *Manager) Create() *Session {
	s := &Session{
		Token:     uuid.NewString(),
		Portfolio: portfolio.New(),
		History:   portfolio.NewLedger(sm.historyLimit),
		lastSeen:  time.Now(),
	}

	sm.sessionsMu.Lock()
	sm.sessions[s.Token] = s
	sm.sessionsMu.Unlock()

	sm.logger.WithField("token", s.Token).Debug("Session created")
	return s
}

// Get returns the session for a token and marks it as seen
func (sm *Manager) Get(token string) (*Session, bool) {
	sm.sessionsMu.Lock()
	defer sm.sessionsMu.Unlock()

	s, exists := sm.sessions[token]
	if !exists {
		return nil, false
	}
	s.lastSeen = time.Now()
	return s, true
}

// GetOrCreate returns the session for a token, creating one when the token
// is empty or unknown. The second return reports whether a new session was
// created.
func (sm *Manager) GetOrCreate(token string) (*Session, bool) {
	if token != "" {
		if s, exists := sm.Get(token); exists {
			return s, false
		}
	}
	return sm.Create(), true
}

// Count returns the number of live sessions
func (sm *Manager) Count() int {
	sm.sessionsMu.RLock()
	defer sm.sessionsMu.RUnlock()
	return len(sm.sessions)
}

// janitorLoop periodically evicts idle sessions
func (sm *Manager) janitorLoop(ctx context.Context) {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sm.done:
			return
		case <-ticker.C:
			sm.evictIdle()
		}
	}
}

// evictIdle drops sessions idle past the TTL
func (sm *Manager) evictIdle() {
	cutoff := time.Now().Add(-sm.ttl)

	sm.sessionsMu.Lock()
	defer sm.sessionsMu.Unlock()

	evicted := 0
	for token, s := range sm.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(sm.sessions, token)
			evicted++
		}
	}

	if evicted > 0 {
		sm.logger.WithFields(logrus.Fields{
			"evicted":   evicted,
			"remaining": len(sm.sessions),
		}).Info("Evicted idle sessions")
	}
}
