package market

import (
	"sort"
	"sync"
	"time"

	"github.com/calc-back/pkg/models"
	"github.com/sirupsen/logrus"
)

// Store holds the latest known market snapshot, keyed by canonical uppercase
// symbol. The whole snapshot is replaced atomically on each successful
// refresh; stale symbols drop out, nothing is mutated in place.
type Store struct {
	assets  map[string]models.Asset
	symbols []string // alphabetical, for display ordering

	state       models.DataState
	lastErr     error
	lastRefresh time.Time

	logger *logrus.Entry
	mu     sync.RWMutex
}

// NewStore creates an empty store in the Loading state
func NewStore(logger *logrus.Logger) *Store {
	return &Store{
		assets: make(map[string]models.Asset),
		state:  models.StateLoading,
		logger: logger.WithField("component", "market-store"),
	}
}

// Replace swaps the store contents for a fresh snapshot and marks the store
// Ready. Duplicate symbols keep the first record seen (feed order is by
// market cap, so the dominant listing wins).
func (s *Store) Replace(assets []models.Asset) {
	next := make(map[string]models.Asset, len(assets))
	for _, a := range assets {
		if _, exists := next[a.Symbol]; exists {
			continue
		}
		next[a.Symbol] = a
	}

	symbols := make([]string, 0, len(next))
	for symbol := range next {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets = next
	s.symbols = symbols
	s.state = models.StateReady
	s.lastErr = nil
	s.lastRefresh = time.Now()

	s.logger.WithField("assets", len(next)).Debug("Market snapshot replaced")
}

// SetError records a refresh failure. Previous contents are retained; the
// store only enters Failed if no snapshot was ever loaded (Ready is never
// demoted).
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = err
	if s.state != models.StateReady {
		s.state = models.StateFailed
	}
}

// Snapshot returns a copy of the current symbol-keyed asset map
func (s *Store) Snapshot() map[string]models.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]models.Asset, len(s.assets))
	for k, v := range s.assets {
		snapshot[k] = v
	}
	return snapshot
}

// Assets returns the current assets in alphabetical symbol order
func (s *Store) Assets() []models.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]models.Asset, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		assets = append(assets, s.assets[symbol])
	}
	return assets
}

// Symbols returns the known symbols in alphabetical order
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, len(s.symbols))
	copy(symbols, s.symbols)
	return symbols
}

// Get returns the asset for a symbol
func (s *Store) Get(symbol string) (models.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, exists := s.assets[symbol]
	return asset, exists
}

// Price returns the USD price for a symbol
func (s *Store) Price(symbol string) (float64, bool) {
	asset, exists := s.Get(symbol)
	if !exists {
		return 0, false
	}
	return asset.PriceUSD, true
}

// Count returns the number of known assets
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

// State returns the current data-readiness state
func (s *Store) State() models.DataState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the most recent refresh error, if any
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastRefresh returns the time of the last successful refresh
func (s *Store) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}
