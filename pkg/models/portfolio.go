package models

import (
	"time"
)

// LineItem is one user-entered (amount, symbol) pair.
// Amount stays a raw string: empty or non-numeric input is tolerated and
// simply contributes zero to the totals.
type LineItem struct {
	Amount string `json:"amount"`
	Symbol string `json:"symbol"`
}

// Totals holds aggregate valuation output, formatted to display precision
// (2 fractional digits for fiat, 8 for bitcoin-denominated amounts).
// BTC is nil when the BTC price is unknown; it is omitted, never defaulted.
type Totals struct {
	USD      string  `json:"usd"`
	Local    string  `json:"local"`
	Currency string  `json:"currency"`
	BTC      *string `json:"btc,omitempty"`
}

// Conversion is the result of a buy-side query: a USD amount expressed in a
// target asset and in bitcoin-equivalent terms.
type Conversion struct {
	Symbol        string `json:"symbol"`
	USDAmount     string `json:"usd_amount"`
	TargetAmount  string `json:"target_amount"`
	BTCEquivalent string `json:"btc_equivalent"`
}

// HistoryEntry is an immutable snapshot of a calculation, captured by an
// explicit save action and prepended to the session ledger.
type HistoryEntry struct {
	Timestamp time.Time    `json:"timestamp"`
	Items     []LineItem   `json:"items"`
	Totals    Totals       `json:"totals"`
	Rate      ExchangeRate `json:"rate"`
}
