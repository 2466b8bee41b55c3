package models

import (
	"time"
)

// Asset represents a priced crypto asset from the market data feed.
// Assets are replaced wholesale on each refresh cycle, never mutated field-by-field.
type Asset struct {
	Symbol   string  `json:"symbol"`    // Canonical uppercase ticker (BTC, ETH, ...)
	Name     string  `json:"name"`      // Display name (Bitcoin, Ethereum, ...)
	PriceUSD float64 `json:"price_usd"` // Current unit price in USD
	LogoURL  string  `json:"logo_url"`  // Display logo reference
}

// ExchangeRate represents the USD to local-currency multiplier.
type ExchangeRate struct {
	Currency   string    `json:"currency"`   // ISO code of the local currency (ILS, EUR, ...)
	Multiplier float64   `json:"multiplier"` // Local-currency units per USD
	Fallback   bool      `json:"fallback"`   // True until the first successful rate fetch
	UpdatedAt  time.Time `json:"updated_at"`
}
