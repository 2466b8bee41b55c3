package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/calc-back/pkg/models"
)

func TestRateStore_SeedsFallback(t *testing.T) {
	rates := NewRateStore("ILS", 3.5, testLogger())

	rate := rates.Rate()
	assert.Equal(t, "ILS", rate.Currency)
	assert.Equal(t, 3.5, rate.Multiplier)
	assert.True(t, rate.Fallback)
}

func TestRateStore_SetReplacesFallback(t *testing.T) {
	rates := NewRateStore("ILS", 3.5, testLogger())

	assert.NoError(t, rates.Set(3.72))

	rate := rates.Rate()
	assert.Equal(t, 3.72, rate.Multiplier)
	assert.False(t, rate.Fallback)
	assert.Equal(t, 3.72, rates.Multiplier())
}

func TestRateStore_RejectsNonPositive(t *testing.T) {
	rates := NewRateStore("ILS", 3.5, testLogger())

	assert.Error(t, rates.Set(0))
	assert.Error(t, rates.Set(-1))
	assert.Equal(t, 3.5, rates.Multiplier())
}

func TestRateStore_RestoreMatchingCurrency(t *testing.T) {
	rates := NewRateStore("ILS", 3.5, testLogger())

	rates.Restore(models.ExchangeRate{
		Currency:   "ILS",
		Multiplier: 3.68,
		UpdatedAt:  time.Now().Add(-time.Hour),
	})

	assert.Equal(t, 3.68, rates.Multiplier())
}

func TestRateStore_RestoreIgnoresMismatch(t *testing.T) {
	rates := NewRateStore("ILS", 3.5, testLogger())

	// A cached rate for another currency or a bad value is discarded
	rates.Restore(models.ExchangeRate{Currency: "EUR", Multiplier: 0.9})
	rates.Restore(models.ExchangeRate{Currency: "ILS", Multiplier: 0})
	rates.Restore(models.ExchangeRate{Multiplier: 4})

	assert.Equal(t, 3.5, rates.Multiplier())
	assert.True(t, rates.Rate().Fallback)
}
