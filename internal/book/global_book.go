package book

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fenrir/internal/model"
)

// GlobalBook is the top-level registry of every market's book, keyed by
// market id. Markets are created lazily on first touch. One exclusive
// lock guards the entire structure; callers take it for the full duration
// of a single command's matching and bookkeeping.
type GlobalBook struct {
	mu      sync.RWMutex
	markets map[uuid.UUID]*MarketBook
}

// NewGlobalBook constructs an empty registry.
func NewGlobalBook() *GlobalBook {
	return &GlobalBook{markets: make(map[uuid.UUID]*MarketBook)}
}

// Lock/Unlock expose the single exclusive lock so a caller (the dispatcher)
// can hold it across matching plus any in-memory bookkeeping for one
// command, per the concurrency model this registry implements.
func (gb *GlobalBook) Lock()   { gb.mu.Lock() }
func (gb *GlobalBook) Unlock() { gb.mu.Unlock() }

// getOrCreate must be called with the lock already held.
func (gb *GlobalBook) getOrCreate(marketID uuid.UUID, liquidityB decimal.Decimal) *MarketBook {
	mb, ok := gb.markets[marketID]
	if !ok {
		mb = NewMarketBook(liquidityB)
		gb.markets[marketID] = mb
	}
	return mb
}

// ProcessOrder matches order against its market's book, creating the
// market book if this is its first order. Caller must hold the lock.
func (gb *GlobalBook) ProcessOrder(o *model.Order, liquidityB decimal.Decimal) []MatchOutput {
	return gb.getOrCreate(o.MarketID, liquidityB).ProcessOrder(o)
}

// ProcessOrderWithoutLiquidity matches order against an already-existing
// market book, producing no matches if the market has never been touched.
// Caller must hold the lock.
func (gb *GlobalBook) ProcessOrderWithoutLiquidity(o *model.Order) []MatchOutput {
	mb, ok := gb.markets[o.MarketID]
	if !ok {
		return nil
	}
	return mb.ProcessOrder(o)
}

// AddOrder rests order without matching, creating the market book if
// needed. Caller must hold the lock.
func (gb *GlobalBook) AddOrder(o *model.Order, liquidityB decimal.Decimal) {
	gb.getOrCreate(o.MarketID, liquidityB).AddOrder(o)
}

// GetMarketPrice returns the cached price for outcome in marketID.
// Caller must hold at least a read lock.
func (gb *GlobalBook) GetMarketPrice(marketID uuid.UUID, outcome model.Outcome) (decimal.Decimal, bool) {
	mb, ok := gb.markets[marketID]
	if !ok {
		return decimal.Zero, false
	}
	if outcome == model.OutcomeYES {
		return mb.CurrentYesPrice, true
	}
	return mb.CurrentNoPrice, true
}

// InitializeMarket creates marketID's book with liquidityB if it does not
// already exist, without adding or matching any order. Caller must hold
// the lock.
func (gb *GlobalBook) InitializeMarket(marketID uuid.UUID, liquidityB decimal.Decimal) {
	gb.getOrCreate(marketID, liquidityB)
}

// GetMarketBook returns marketID's market book, if it has been touched.
// Caller must hold at least a read lock.
func (gb *GlobalBook) GetMarketBook(marketID uuid.UUID) (*MarketBook, bool) {
	mb, ok := gb.markets[marketID]
	return mb, ok
}

// GetOrders returns outcome's book for marketID. Caller must hold at least
// a read lock.
func (gb *GlobalBook) GetOrders(marketID uuid.UUID, outcome model.Outcome) (*OutcomeBook, bool) {
	mb, ok := gb.markets[marketID]
	if !ok {
		return nil, false
	}
	ob := mb.GetOrderBook(outcome)
	return ob, ob != nil
}

// CreateMarketOrder sizes and matches a market order against marketID's
// book. Produces no matches if the market has never been touched. Caller
// must hold the lock.
func (gb *GlobalBook) CreateMarketOrder(marketID uuid.UUID, o *model.Order, budget decimal.Decimal) []MatchOutput {
	mb, ok := gb.markets[marketID]
	if !ok {
		return nil
	}
	return mb.CreateMarketOrder(o, budget)
}

// RemoveOrder drops a resting order from its market's book. Caller must
// hold the lock.
func (gb *GlobalBook) RemoveOrder(o *model.Order) bool {
	mb, ok := gb.markets[o.MarketID]
	if !ok {
		return false
	}
	return mb.RemoveOrder(o)
}

// UpdateOrder removes a resting order from its current position and mutates
// it in place to newPrice/newQuantity, leaving it OPEN but not yet
// re-rested. The caller must follow a successful call with
// ProcessOrderWithoutLiquidity to re-match and re-rest it. Caller must hold
// the lock.
func (gb *GlobalBook) UpdateOrder(o *model.Order, oldPrice, newPrice, newQuantity decimal.Decimal) bool {
	mb, ok := gb.markets[o.MarketID]
	if !ok {
		return false
	}
	return mb.UpdateOrder(o, oldPrice, newPrice, newQuantity)
}

// RemoveMarket drops a market's entire book, e.g. on finalization. Caller
// must hold the lock.
func (gb *GlobalBook) RemoveMarket(marketID uuid.UUID) bool {
	if _, ok := gb.markets[marketID]; !ok {
		return false
	}
	delete(gb.markets, marketID)
	return true
}
