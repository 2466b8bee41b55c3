// Package valuation contains the pure pricing functions of the calculator.
// Nothing here holds state: callers pass the current line items, market
// snapshot, and exchange rate, and recompute after every state transition.
package valuation

import (
	"math"
	"strconv"
	"strings"

	"github.com/calc-back/pkg/models"
)

const (
	// FiatPrecision is the display precision for fiat amounts
	FiatPrecision = 2
	// CryptoPrecision is the display precision for crypto-denominated amounts
	CryptoPrecision = 8
	// BitcoinSymbol keys the price used for bitcoin-equivalent figures
	BitcoinSymbol = "BTC"
)

// ParseAmount parses a user-entered amount string. Empty, non-numeric,
// negative, and non-finite input is reported as not-ok; such line items
// contribute zero and never error.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// ComputeTotals aggregates line items against a market snapshot and exchange
// rate. Items with an empty amount, an unselected symbol, or a symbol absent
// from the snapshot contribute exactly zero. The bitcoin-equivalent total is
// omitted, not defaulted, when the BTC price is unknown. The computation is
// idempotent: identical inputs yield identical output.
func ComputeTotals(items []models.LineItem, assets map[string]models.Asset, rate models.ExchangeRate) models.Totals {
	var usd float64
	for _, item := range items {
		amount, ok := ParseAmount(item.Amount)
		if !ok || item.Symbol == "" {
			continue
		}
		asset, exists := assets[item.Symbol]
		if !exists {
			continue
		}
		usd += amount * asset.PriceUSD
	}

	totals := models.Totals{
		USD:      FormatFiat(usd),
		Local:    FormatFiat(usd * rate.Multiplier),
		Currency: rate.Currency,
	}

	if btc, exists := assets[BitcoinSymbol]; exists && btc.PriceUSD > 0 {
		v := FormatCrypto(usd / btc.PriceUSD)
		totals.BTC = &v
	}

	return totals
}

// Convert answers a buy-side query: how much of the target asset, and how
// much bitcoin-equivalent, a given USD amount purchases. Returns ok=false
// when the amount does not parse or either required price is unavailable.
func Convert(symbol string, usdAmount string, assets map[string]models.Asset) (models.Conversion, bool) {
	usd, ok := ParseAmount(usdAmount)
	if !ok {
		return models.Conversion{}, false
	}

	target, exists := assets[symbol]
	if !exists || target.PriceUSD <= 0 {
		return models.Conversion{}, false
	}

	btc, exists := assets[BitcoinSymbol]
	if !exists || btc.PriceUSD <= 0 {
		return models.Conversion{}, false
	}

	return models.Conversion{
		Symbol:        symbol,
		USDAmount:     FormatFiat(usd),
		TargetAmount:  FormatCrypto(usd / target.PriceUSD),
		BTCEquivalent: FormatCrypto(usd / btc.PriceUSD),
	}, true
}

// ZeroTotals returns the default totals shown before any data has loaded
func ZeroTotals(rate models.ExchangeRate) models.Totals {
	return models.Totals{
		USD:      FormatFiat(0),
		Local:    FormatFiat(0),
		Currency: rate.Currency,
	}
}

// FormatFiat renders a fiat amount at display precision
func FormatFiat(v float64) string {
	return strconv.FormatFloat(v, 'f', FiatPrecision, 64)
}

// FormatCrypto renders a crypto-denominated amount at display precision
func FormatCrypto(v float64) string {
	return strconv.FormatFloat(v, 'f', CryptoPrecision, 64)
}
