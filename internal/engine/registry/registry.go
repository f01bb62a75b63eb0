// Package registry tracks known items by symbol. An item is created on the
// first sighting of a new symbol and is never removed afterwards, only
// deactivated, so observation references stay resolvable.
package registry

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"ValueFlow/internal/domain/models"
)

type Registry struct {
	mu       sync.RWMutex
	bySymbol map[string]*models.Item
	byID     map[int64]*models.Item
	nextID   int64
}

func New() *Registry {
	return &Registry{
		bySymbol: make(map[string]*models.Item),
		byID:     make(map[int64]*models.Item),
		nextID:   1,
	}
}

// Ensure returns the item for symbol, creating it with the given category on
// first sighting. A re-sighting never changes identity.
func (r *Registry) Ensure(symbol string, category models.ItemCategory) *models.Item {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	r.mu.Lock()
	defer r.mu.Unlock()

	if it, ok := r.bySymbol[symbol]; ok {
		return it
	}
	it := &models.Item{
		ID:        r.nextID,
		Symbol:    symbol,
		Category:  category,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	r.nextID++
	r.bySymbol[symbol] = it
	r.byID[it.ID] = it
	return it
}

// Lookup finds an item by symbol.
func (r *Registry) Lookup(symbol string) (*models.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return it, ok
}

// ByID finds an item by identifier.
func (r *Registry) ByID(id int64) (*models.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.byID[id]
	return it, ok
}

// SymbolOf returns the symbol for id or its decimal form when unknown, so
// error messages always name something.
func (r *Registry) SymbolOf(id int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if it, ok := r.byID[id]; ok {
		return it.Symbol
	}
	return "#" + strconv.FormatInt(id, 10)
}

// Deactivate soft-disables an item. Returns false if the symbol is unknown.
func (r *Registry) Deactivate(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return false
	}
	it.Active = false
	return true
}

// Items returns all known items ordered by symbol.
func (r *Registry) Items() []models.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Item, 0, len(r.bySymbol))
	for _, it := range r.bySymbol {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
