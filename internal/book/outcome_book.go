package book

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"fenrir/internal/model"
)

var (
	// ErrInsufficientLiquidity describes a market order that cannot be
	// fully covered by the resting book on the opposite side. No function
	// in this package returns it: CreateMarketOrder cancels such an order.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity to cover order")
)

// Levels is an ordered map from price to the orders resting there.
type Levels = btree.BTreeG[*PriceLevel]

// MatchOutput describes one fill produced while matching a single order
// against the book. One order can produce many of these in one call.
type MatchOutput struct {
	OrderID                     uuid.UUID
	OppositeOrderID             uuid.UUID
	MatchedQuantity             decimal.Decimal
	Price                       decimal.Decimal
	OppositeOrderTotalQuantity  decimal.Decimal
	OppositeOrderFilledQuantity decimal.Decimal
}

// OutcomeBook is the order book for one outcome (YES or NO) of one market.
type OutcomeBook struct {
	bids *Levels // highest price first
	asks *Levels // lowest price first
}

// NewOutcomeBook constructs an empty book.
func NewOutcomeBook() *OutcomeBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price)
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	})
	return &OutcomeBook{bids: bids, asks: asks}
}

func (ob *OutcomeBook) levelsFor(side model.OrderSide) *Levels {
	if side == model.OrderSideBuy {
		return ob.bids
	}
	return ob.asks
}

func oppositeLevels(ob *OutcomeBook, side model.OrderSide) *Levels {
	if side == model.OrderSideBuy {
		return ob.asks
	}
	return ob.bids
}

// BestBid returns the top of the bid book, if any.
func (ob *OutcomeBook) BestBid() (*PriceLevel, bool) {
	return ob.bids.Min()
}

// BestAsk returns the top of the ask book, if any.
func (ob *OutcomeBook) BestAsk() (*PriceLevel, bool) {
	return ob.asks.Min()
}

// AddOrder inserts a resting order into the appropriate side at its price,
// without attempting to match it. Used for orders that arrive already
// known to rest (e.g. bootstrap replay).
func (ob *OutcomeBook) AddOrder(o *model.Order) {
	levels := ob.levelsFor(o.Side)
	entry := &Entry{
		UserID:         o.UserID,
		OrderID:        o.ID,
		TotalQuantity:  o.Quantity,
		FilledQuantity: o.FilledQuantity,
	}
	ob.insert(levels, o.Price, entry)
}

func (ob *OutcomeBook) insert(levels *Levels, price decimal.Decimal, entry *Entry) {
	level, ok := levels.GetMut(&PriceLevel{Price: price})
	if !ok {
		level = newPriceLevel(price)
		levels.Set(level)
	}
	level.push(entry)
}

// RemoveOrder removes a resting order by id from the given side at price.
// Returns false if the order was not found.
func (ob *OutcomeBook) RemoveOrder(orderID uuid.UUID, side model.OrderSide, price decimal.Decimal) bool {
	levels := ob.levelsFor(side)
	level, ok := levels.GetMut(&PriceLevel{Price: price})
	if !ok {
		return false
	}
	idx := level.findIndex(orderID)
	if idx < 0 {
		return false
	}
	level.removeAt(idx)
	if len(level.Orders) == 0 {
		levels.Delete(level)
	}
	return true
}

// UpdateOrder removes o from its current resting position at oldPrice and
// mutates it in place to newPrice/newQuantity with status OPEN, ready for
// the caller to run it back through MatchOrder/AddOrder exactly once.
// Returns false if the order was not resting at oldPrice.
func (ob *OutcomeBook) UpdateOrder(o *model.Order, oldPrice, newPrice, newQuantity decimal.Decimal) bool {
	if !ob.RemoveOrder(o.ID, o.Side, oldPrice) {
		return false
	}
	o.Price = newPrice
	o.Quantity = newQuantity
	o.Status = model.OrderStatusOpen
	return true
}

// MatchOrder matches an incoming order (already validated and, for limit
// orders, already priced) against the opposite side in price-time
// priority. It mutates o.FilledQuantity and o.Status in place, skips
// resting entries owned by the same user (self-trade prevention), and
// returns one MatchOutput per fill. If o is a limit order and still has
// remaining quantity after matching, the caller is responsible for resting
// it with AddOrder.
func (ob *OutcomeBook) MatchOrder(o *model.Order) []MatchOutput {
	opposite := oppositeLevels(ob, o.Side)
	var outputs []MatchOutput

	for o.Remaining().IsPositive() {
		level, ok := opposite.Min()
		if !ok {
			break
		}
		if o.Type == model.OrderTypeLimit {
			if o.Side == model.OrderSideBuy && level.Price.GreaterThan(o.Price) {
				break
			}
			if o.Side == model.OrderSideSell && level.Price.LessThan(o.Price) {
				break
			}
		}

		mut, _ := opposite.GetMut(level)
		matchedAny := false
		for _, entry := range mut.Orders {
			if !o.Remaining().IsPositive() {
				break
			}
			if entry.UserID == o.UserID {
				continue
			}
			matchQty := decimal.Min(o.Remaining(), entry.Remaining())
			if !matchQty.IsPositive() {
				continue
			}

			entry.FilledQuantity = entry.FilledQuantity.Add(matchQty)
			o.FilledQuantity = o.FilledQuantity.Add(matchQty)
			mut.TotalQuantity = mut.TotalQuantity.Sub(matchQty)
			matchedAny = true

			outputs = append(outputs, MatchOutput{
				OrderID:                     o.ID,
				OppositeOrderID:             entry.OrderID,
				MatchedQuantity:             matchQty,
				Price:                       mut.Price,
				OppositeOrderTotalQuantity:  entry.TotalQuantity,
				OppositeOrderFilledQuantity: entry.FilledQuantity,
			})
		}

		// Drop only entries fully consumed this pass; a skipped self-trade
		// or a still-partial entry must keep resting.
		filtered := mut.Orders[:0]
		for _, entry := range mut.Orders {
			if entry.Remaining().IsPositive() {
				filtered = append(filtered, entry)
			}
		}
		mut.Orders = filtered

		if len(mut.Orders) == 0 {
			opposite.Delete(mut)
			continue
		}
		// No progress possible at this level for a non-crossing reason
		// (everything left belongs to the taker): stop rather than loop.
		if !matchedAny {
			break
		}
	}

	if !o.Remaining().IsPositive() {
		o.Status = model.OrderStatusFilled
	}
	return outputs
}

// GetAvailableMatchQuantity walks the opposite side of the book, skipping
// entries owned by userID, and reports how much of budget can actually be
// spent against resting liquidity without mutating the book. It returns the
// matchable quantity and whatever part of budget is left over once the book
// is exhausted - a positive remaining means the book could not absorb the
// whole budget. It is used to pre-flight market orders before they touch
// MatchOrder.
func (ob *OutcomeBook) GetAvailableMatchQuantity(side model.OrderSide, budget decimal.Decimal, userID uuid.UUID) (matched, remaining decimal.Decimal) {
	opposite := oppositeLevels(ob, side)
	remaining = budget
	matched = decimal.Zero

	opposite.Scan(func(level *PriceLevel) bool {
		if !remaining.IsPositive() {
			return false
		}
		for _, entry := range level.Orders {
			if entry.UserID == userID {
				continue
			}
			cost := entry.Remaining().Mul(level.Price)
			if cost.LessThanOrEqual(remaining) {
				remaining = remaining.Sub(cost)
				matched = matched.Add(entry.Remaining())
			} else {
				affordable := remaining.Div(level.Price)
				matched = matched.Add(affordable)
				remaining = decimal.Zero
			}
			if !remaining.IsPositive() {
				break
			}
		}
		return remaining.IsPositive()
	})

	return matched, remaining
}

// CreateMarketOrder sizes a market order against currently available
// opposite-side liquidity for budget, then matches it. Partial fills of a
// market order are not allowed: if the book can't absorb the whole budget
// (remaining left over), or budget is zero to begin with, the order is
// marked CANCELLED and produces no matches at all, rather than resting or
// filling partially.
func (ob *OutcomeBook) CreateMarketOrder(o *model.Order, budget decimal.Decimal) []MatchOutput {
	if o.Type != model.OrderTypeMarket {
		return nil
	}

	available, remaining := ob.GetAvailableMatchQuantity(o.Side, budget, o.UserID)
	if remaining.IsPositive() || budget.IsZero() {
		o.Quantity = decimal.Zero
		o.Status = model.OrderStatusCancelled
		return nil
	}

	o.Quantity = available
	return ob.MatchOrder(o)
}

// Snapshot is a read-only view of the book suitable for serialization.
type Snapshot struct {
	Bids []LevelView
	Asks []LevelView
}

// LevelView is one price level's public aggregate.
type LevelView struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// GetOrderBook returns a depth snapshot, best price first on each side.
func (ob *OutcomeBook) GetOrderBook() Snapshot {
	var snap Snapshot
	ob.bids.Scan(func(l *PriceLevel) bool {
		snap.Bids = append(snap.Bids, LevelView{Price: l.Price, Quantity: l.TotalQuantity})
		return true
	})
	ob.asks.Scan(func(l *PriceLevel) bool {
		snap.Asks = append(snap.Asks, LevelView{Price: l.Price, Quantity: l.TotalQuantity})
		return true
	})
	return snap
}
