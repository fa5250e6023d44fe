package book

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fenrir/internal/model"
)

func newOrder(outcome model.Outcome, side model.OrderSide, price, qty string, userID uuid.UUID) *model.Order {
	return &model.Order{
		ID:        uuid.New(),
		MarketID:  uuid.New(),
		UserID:    userID,
		Outcome:   outcome,
		Side:      side,
		Type:      model.OrderTypeLimit,
		Status:    model.OrderStatusOpen,
		Price:     decimal.RequireFromString(price),
		Quantity:  decimal.RequireFromString(qty),
		CreatedAt: time.Now(),
	}
}

func TestOutcomeBookPartialFill(t *testing.T) {
	ob := NewOutcomeBook()
	buy := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.25", "10", uuid.New())
	ob.AddOrder(buy)

	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.20", "5", uuid.New())
	matches := ob.MatchOrder(sell)

	assert.Equal(t, model.OrderStatusFilled, sell.Status)
	assert.True(t, sell.FilledQuantity.Equal(decimal.RequireFromString("5")))
	assert.Len(t, matches, 1)

	level, ok := ob.bids.Get(&PriceLevel{Price: buy.Price})
	assert.True(t, ok)
	assert.True(t, level.TotalQuantity.Equal(decimal.RequireFromString("5")))
}

func TestOutcomeBookTimePriority(t *testing.T) {
	ob := NewOutcomeBook()
	buy1 := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.25", "5", uuid.New())
	buy2 := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.25", "5", uuid.New())
	ob.AddOrder(buy1)
	ob.AddOrder(buy2)

	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.20", "8", uuid.New())
	matches := ob.MatchOrder(sell)

	assert.Len(t, matches, 2)
	assert.Equal(t, buy1.ID, matches[0].OppositeOrderID)
	assert.Equal(t, buy2.ID, matches[1].OppositeOrderID)
	assert.True(t, sell.FilledQuantity.Equal(decimal.RequireFromString("8")))
	assert.Equal(t, model.OrderStatusFilled, sell.Status)
}

func TestOutcomeBookNoMatchingPrice(t *testing.T) {
	ob := NewOutcomeBook()
	buy := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.20", "5", uuid.New())
	ob.AddOrder(buy)

	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.25", "5", uuid.New())
	matches := ob.MatchOrder(sell)

	assert.Empty(t, matches)
	assert.True(t, sell.FilledQuantity.IsZero())
	assert.Equal(t, model.OrderStatusOpen, sell.Status)
}

// A self-trade-skipped entry resting ahead of a fully-consumed one at the
// same price level must survive the level cleanup, and its quantity must
// stay counted in the level's aggregate total.
func TestOutcomeBookMatchOrderPreservesSkippedEntryAheadOfFill(t *testing.T) {
	ob := NewOutcomeBook()
	taker := uuid.New()
	other := uuid.New()

	selfOwned := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.30", "4", taker)
	ob.AddOrder(selfOwned)

	fillable := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.30", "6", other)
	ob.AddOrder(fillable)

	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.30", "6", taker)
	matches := ob.MatchOrder(sell)

	assert.Len(t, matches, 1)
	assert.Equal(t, fillable.ID, matches[0].OppositeOrderID)
	assert.Equal(t, model.OrderStatusFilled, sell.Status)

	level, ok := ob.bids.Get(&PriceLevel{Price: decimal.RequireFromString("0.30")})
	assert.True(t, ok)
	assert.Len(t, level.Orders, 1)
	assert.Equal(t, selfOwned.ID, level.Orders[0].OrderID)
	assert.True(t, level.TotalQuantity.Equal(decimal.RequireFromString("4")))
}

func TestOutcomeBookRemoveNonExistentOrder(t *testing.T) {
	ob := NewOutcomeBook()
	ok := ob.RemoveOrder(uuid.New(), model.OrderSideBuy, decimal.RequireFromString("0.5"))
	assert.False(t, ok)

	order := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.5", "10", uuid.New())
	ob.AddOrder(order)

	ok = ob.RemoveOrder(order.ID, model.OrderSideSell, decimal.RequireFromString("0.5"))
	assert.False(t, ok)
}

func TestOutcomeBookMarketOrderBasicBuy(t *testing.T) {
	ob := NewOutcomeBook()
	seller := uuid.New()
	buyer := uuid.New()

	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.25", "10", seller)
	ob.AddOrder(sell)

	marketBuy := &model.Order{
		ID: uuid.New(), UserID: buyer, Outcome: model.OutcomeYES,
		Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Status: model.OrderStatusOpen,
	}
	matches := ob.CreateMarketOrder(marketBuy, decimal.RequireFromString("1.25"))

	assert.Len(t, matches, 1)
	assert.True(t, matches[0].MatchedQuantity.Equal(decimal.RequireFromString("5")))
	assert.True(t, marketBuy.Quantity.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, model.OrderStatusFilled, marketBuy.Status)
}

func TestOutcomeBookMarketOrderZeroBudgetCancelled(t *testing.T) {
	ob := NewOutcomeBook()
	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.5", "10", uuid.New())
	ob.AddOrder(sell)

	marketBuy := &model.Order{
		ID: uuid.New(), UserID: uuid.New(), Outcome: model.OutcomeYES,
		Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Status: model.OrderStatusOpen,
	}
	matches := ob.CreateMarketOrder(marketBuy, decimal.Zero)

	assert.Empty(t, matches)
	assert.True(t, marketBuy.Quantity.IsZero())
	assert.Equal(t, model.OrderStatusCancelled, marketBuy.Status)
}

// A budget that outsizes the entire book's liquidity must not partially
// fill: the order is aborted with zero matches rather than left FILLED
// against less than it asked for.
func TestOutcomeBookMarketOrderBudgetExceedsLiquidity(t *testing.T) {
	ob := NewOutcomeBook()
	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.5", "10", uuid.New())
	ob.AddOrder(sell)

	marketBuy := &model.Order{
		ID: uuid.New(), UserID: uuid.New(), Outcome: model.OutcomeYES,
		Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Status: model.OrderStatusOpen,
	}
	// The book can only absorb 10 * 0.5 = 5; ask for far more.
	matches := ob.CreateMarketOrder(marketBuy, decimal.RequireFromString("50"))

	assert.Empty(t, matches)
	assert.True(t, marketBuy.Quantity.IsZero())
	assert.Equal(t, model.OrderStatusCancelled, marketBuy.Status)
}

func TestOutcomeBookMarketOrderSameUserNoMatch(t *testing.T) {
	ob := NewOutcomeBook()
	user := uuid.New()
	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.5", "10", user)
	ob.AddOrder(sell)

	marketBuy := &model.Order{
		ID: uuid.New(), UserID: user, Outcome: model.OutcomeYES,
		Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Status: model.OrderStatusOpen,
	}
	matches := ob.CreateMarketOrder(marketBuy, decimal.RequireFromString("5.0"))

	assert.Empty(t, matches)
	assert.Equal(t, model.OrderStatusCancelled, marketBuy.Status)
}

func TestOutcomeBookMarketOrderMultiplePriceLevels(t *testing.T) {
	ob := NewOutcomeBook()
	seller := uuid.New()
	buyer := uuid.New()

	ob.AddOrder(newOrder(model.OutcomeYES, model.OrderSideSell, "0.20", "3", seller))
	ob.AddOrder(newOrder(model.OutcomeYES, model.OrderSideSell, "0.30", "4", seller))
	ob.AddOrder(newOrder(model.OutcomeYES, model.OrderSideSell, "0.40", "5", seller))

	marketBuy := &model.Order{
		ID: uuid.New(), UserID: buyer, Outcome: model.OutcomeYES,
		Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Status: model.OrderStatusOpen,
	}
	matches := ob.CreateMarketOrder(marketBuy, decimal.RequireFromString("2.6"))

	assert.Len(t, matches, 3)
	assert.True(t, marketBuy.Quantity.Equal(decimal.RequireFromString("9")))
	assert.Equal(t, model.OrderStatusFilled, marketBuy.Status)
	assert.True(t, matches[2].MatchedQuantity.Equal(decimal.RequireFromString("2")))
}
