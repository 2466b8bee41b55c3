package portfolio

import (
	"sync"
	"time"

	"github.com/calc-back/pkg/models"
)

// Ledger is the prepend-only history of saved calculations. Entries are
// immutable snapshots; no operation edits or removes one. The ledger is
// capacity-bounded: beyond the limit, the oldest entries fall off the back.
type Ledger struct {
	entries []models.HistoryEntry
	limit   int
	mu      sync.RWMutex
}

// NewLedger creates an empty ledger holding at most limit entries
func NewLedger(limit int) *Ledger {
	return &Ledger{limit: limit}
}

// Save captures an immutable snapshot of the given items, totals, and rate,
// and prepends it to the ledger
func (l *Ledger) Save(items []models.LineItem, totals models.Totals, rate models.ExchangeRate) models.HistoryEntry {
	captured := make([]models.LineItem, len(items))
	copy(captured, items)

	if totals.BTC != nil {
		btc := *totals.BTC
		totals.BTC = &btc
	}

	entry := models.HistoryEntry{
		Timestamp: time.Now(),
		Items:     captured,
		Totals:    totals,
		Rate:      rate,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]models.HistoryEntry, 0, len(l.entries)+1)
	next = append(next, entry)
	next = append(next, l.entries...)
	if len(next) > l.limit {
		next = next[:l.limit]
	}
	l.entries = next

	return entry
}

// Entries returns a copy of the ledger, newest first
func (l *Ledger) Entries() []models.HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]models.HistoryEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Len returns the number of saved entries
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
