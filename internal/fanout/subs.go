package fanout

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const orderBookUpdatePrefix = "order_book_update:"

// MarketSubs tracks, from the matching engine's side, which markets
// currently have at least one live order-book-update subscriber on the
// broadcaster. It is kept current by relayed subscribe/unsubscribe
// commands from the broadcaster's privileged-uplink special client, and
// gates whether a pub/sub book snapshot is worth publishing at all.
type MarketSubs struct {
	mu      sync.RWMutex
	markets map[uuid.UUID]struct{}
}

// NewMarketSubs constructs an empty tracker.
func NewMarketSubs() *MarketSubs {
	return &MarketSubs{markets: make(map[uuid.UUID]struct{})}
}

// Add marks marketID as having at least one subscriber.
func (m *MarketSubs) Add(marketID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[marketID] = struct{}{}
}

// Remove marks marketID as having no subscribers.
func (m *MarketSubs) Remove(marketID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markets, marketID)
}

// Has reports whether marketID currently has a subscriber.
func (m *MarketSubs) Has(marketID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.markets[marketID]
	return ok
}

// ApplyRelay applies a relayed {op, channel} command from the
// broadcaster's special-client uplink. Channels it doesn't recognize are
// ignored; this is a best-effort mirror, not an authoritative source.
func (m *MarketSubs) ApplyRelay(op, channel string) {
	if !strings.HasPrefix(channel, orderBookUpdatePrefix) {
		return
	}
	idStr := strings.TrimPrefix(channel, orderBookUpdatePrefix)
	marketID, err := uuid.Parse(idStr)
	if err != nil {
		return
	}

	switch op {
	case "subscribe":
		m.Add(marketID)
	case "unsubscribe":
		m.Remove(marketID)
	}
}
