package catalog

import (
	"sync"

	"github.com/MiKapsDev/Lion-City/internal/events"
)

// Board keeps the latest evaluation of the catalog and refreshes it whenever
// the balance, the groups, the stock or the whole demo state changes.
type Board struct {
	svc *Service

	// refreshMu orders evaluations so a newer version never holds older offers.
	refreshMu sync.Mutex

	mu          sync.RWMutex
	offers      Offers
	version     uint64
	unsubscribe func()
}

// NewBoard evaluates the catalog once and subscribes to bus for refreshes.
func NewBoard(svc *Service, bus *events.Bus) *Board {
	b := &Board{svc: svc}
	b.Refresh()
	b.unsubscribe = bus.Subscribe(func(events.Event) { b.Refresh() },
		events.Reset,
		events.GroupsChanged,
		events.BalanceChanged,
		events.OfferRedeemed,
	)
	return b
}

// Refresh re-evaluates the catalog.
func (b *Board) Refresh() {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()
	offers := b.svc.Offers()
	b.mu.Lock()
	b.offers = offers
	b.version++
	b.mu.Unlock()
}

// Offers returns the latest evaluation.
func (b *Board) Offers() Offers {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.offers
}

// Version counts evaluations, starting at 1.
func (b *Board) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Close stops listening for changes.
func (b *Board) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}
