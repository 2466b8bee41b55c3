package portfolio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/calc-back/pkg/models"
)

// Portfolio is the ordered, mutable list of line items a user is composing.
// Every mutation replaces the item slice wholesale so readers never observe
// a partially updated collection.
type Portfolio struct {
	items []models.LineItem
	mu    sync.RWMutex
}

// New creates a portfolio with a single blank line item, matching the
// calculator's initial editor row
func New() *Portfolio {
	return &Portfolio{
		items: []models.LineItem{{}},
	}
}

// Items returns a copy of the current line items in insertion order
func (p *Portfolio) Items() []models.LineItem {
	p.mu.RLock()
	defer p.mu.RUnlock()

	items := make([]models.LineItem, len(p.items))
	copy(items, p.items)
	return items
}

// Len returns the number of line items
func (p *Portfolio) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Add appends a blank line item
func (p *Portfolio) Add() []models.LineItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make([]models.LineItem, len(p.items)+1)
	copy(next, p.items)
	p.items = next

	return p.copyLocked()
}

// UpdateAmount sets the amount of the line item at index. The raw string is
// stored as-is: invalid input is excluded from totals, not rejected here.
func (p *Portfolio) UpdateAmount(index int, amount string) ([]models.LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.items) {
		return nil, fmt.Errorf("line item index %d out of range", index)
	}

	next := make([]models.LineItem, len(p.items))
	copy(next, p.items)
	next[index].Amount = amount
	p.items = next

	return p.copyLocked(), nil
}

// UpdateSymbol sets the symbol of the line item at index, canonicalized to
// uppercase. An unknown symbol is tolerated; it simply contributes zero.
func (p *Portfolio) UpdateSymbol(index int, symbol string) ([]models.LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.items) {
		return nil, fmt.Errorf("line item index %d out of range", index)
	}

	next := make([]models.LineItem, len(p.items))
	copy(next, p.items)
	next[index].Symbol = strings.ToUpper(strings.TrimSpace(symbol))
	p.items = next

	return p.copyLocked(), nil
}

// Remove deletes the line item at index
func (p *Portfolio) Remove(index int) ([]models.LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.items) {
		return nil, fmt.Errorf("line item index %d out of range", index)
	}

	next := make([]models.LineItem, 0, len(p.items)-1)
	next = append(next, p.items[:index]...)
	next = append(next, p.items[index+1:]...)
	p.items = next

	return p.copyLocked(), nil
}

// FillAll replaces the entire set with one blank line item per known symbol
func (p *Portfolio) FillAll(symbols []string) []models.LineItem {
	next := make([]models.LineItem, 0, len(symbols))
	for _, symbol := range symbols {
		next = append(next, models.LineItem{Symbol: symbol})
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = next
	return p.copyLocked()
}

// copyLocked returns a copy of the items; callers must hold at least a
// read lock
func (p *Portfolio) copyLocked() []models.LineItem {
	items := make([]models.LineItem, len(p.items))
	copy(items, p.items)
	return items
}
