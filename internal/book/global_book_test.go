package book

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fenrir/internal/model"
)

func TestGlobalBookLazyMarketCreation(t *testing.T) {
	gb := NewGlobalBook()
	assert.Empty(t, gb.markets)

	marketID := uuid.New()
	buy := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.5", "10", uuid.New())
	buy.MarketID = marketID

	gb.ProcessOrder(buy, decimal.RequireFromString("100"))
	assert.Len(t, gb.markets, 1)

	price, ok := gb.GetMarketPrice(marketID, model.OutcomeYES)
	assert.True(t, ok)
	// One resting YES bid of 0.5 x 10 gives F_yes = 5, so with b = 100 the
	// YES price is (100 + 5) / (200 + 5) = 105/205.
	assert.True(t, price.Equal(decimal.RequireFromString("0.5121951219512195")))
}

func TestGlobalBookProcessOrderMatchesAcrossCalls(t *testing.T) {
	gb := NewGlobalBook()
	marketID := uuid.New()
	liquidity := decimal.RequireFromString("100")

	buy := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.5", "10", uuid.New())
	buy.MarketID = marketID
	matches := gb.ProcessOrder(buy, liquidity)
	assert.Empty(t, matches)

	sell := newOrder(model.OutcomeYES, model.OrderSideSell, "0.5", "10", uuid.New())
	sell.MarketID = marketID
	matches = gb.ProcessOrder(sell, liquidity)

	assert.Len(t, matches, 1)
	assert.Equal(t, sell.ID, matches[0].OrderID)
	assert.Equal(t, buy.ID, matches[0].OppositeOrderID)
}

func TestGlobalBookProcessOrderWithoutLiquidityUnknownMarket(t *testing.T) {
	gb := NewGlobalBook()
	order := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.5", "10", uuid.New())
	matches := gb.ProcessOrderWithoutLiquidity(order)
	assert.Empty(t, matches)
}

func TestGlobalBookRemoveMarket(t *testing.T) {
	gb := NewGlobalBook()
	marketID := uuid.New()
	order := newOrder(model.OutcomeYES, model.OrderSideBuy, "0.5", "10", uuid.New())
	order.MarketID = marketID
	gb.AddOrder(order, decimal.RequireFromString("100"))

	assert.True(t, gb.RemoveMarket(marketID))
	assert.False(t, gb.RemoveMarket(marketID))
}
