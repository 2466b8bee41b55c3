package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/calc-back/pkg/models"
	"github.com/sirupsen/logrus"
)

// RateStore holds the current USD to local-currency multiplier. It starts
// on the configured fallback constant and is updated atomically by the
// refresh cycle; a failed fetch keeps the previous value.
type RateStore struct {
	rate   models.ExchangeRate
	logger *logrus.Entry
	mu     sync.RWMutex
}

// NewRateStore creates a rate store seeded with the fallback multiplier
func NewRateStore(currency string, fallback float64, logger *logrus.Logger) *RateStore {
	return &RateStore{
		rate: models.ExchangeRate{
			Currency:   currency,
			Multiplier: fallback,
			Fallback:   true,
			UpdatedAt:  time.Now(),
		},
		logger: logger.WithField("component", "rate-store"),
	}
}

// Set replaces the current multiplier with a freshly fetched value
func (rs *RateStore) Set(multiplier float64) error {
	if multiplier <= 0 {
		return fmt.Errorf("invalid exchange rate multiplier: %f", multiplier)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.rate.Multiplier = multiplier
	rs.rate.Fallback = false
	rs.rate.UpdatedAt = time.Now()

	rs.logger.WithFields(logrus.Fields{
		"currency": rs.rate.Currency,
		"rate":     multiplier,
	}).Debug("Exchange rate updated")

	return nil
}

// Restore seeds the store from a cached rate, keeping the fallback flag
func (rs *RateStore) Restore(rate models.ExchangeRate) {
	if rate.Multiplier <= 0 || rate.Currency == "" {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rate.Currency == rs.rate.Currency {
		rs.rate = rate
	}
}

// Rate returns the current exchange rate
func (rs *RateStore) Rate() models.ExchangeRate {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.rate
}

// Multiplier returns the current multiplier value
func (rs *RateStore) Multiplier() float64 {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.rate.Multiplier
}
