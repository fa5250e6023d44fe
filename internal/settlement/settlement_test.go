package settlement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
	"fenrir/internal/model"
	"fenrir/internal/store"
)

// fakeStore is an in-memory store.Store used to exercise settlement logic
// without a live Postgres instance.
type fakeStore struct {
	owners        map[uuid.UUID]uuid.UUID
	statuses      map[uuid.UUID]model.OrderStatus
	trades        []model.UserTrade
	holdings      map[string]decimal.Decimal
	balances      map[uuid.UUID]decimal.Decimal
	openOrders    []model.Order
	existingHolds []model.UserHolding
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners:   make(map[uuid.UUID]uuid.UUID),
		statuses: make(map[uuid.UUID]model.OrderStatus),
		holdings: make(map[string]decimal.Decimal),
		balances: make(map[uuid.UUID]decimal.Decimal),
	}
}

func holdKey(userID, marketID uuid.UUID, outcome model.Outcome) string {
	return userID.String() + "|" + marketID.String() + "|" + string(outcome)
}

func (f *fakeStore) GetOrder(_ context.Context, orderID uuid.UUID) (model.Order, error) {
	owner, ok := f.owners[orderID]
	if !ok {
		return model.Order{}, store.ErrOrderNotFound
	}
	return model.Order{ID: orderID, UserID: owner, Status: f.statuses[orderID]}, nil
}

func (f *fakeStore) GetOrderOwner(_ context.Context, orderID uuid.UUID) (uuid.UUID, error) {
	owner, ok := f.owners[orderID]
	if !ok {
		return uuid.UUID{}, store.ErrOrderNotFound
	}
	return owner, nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID uuid.UUID, status model.OrderStatus) error {
	f.statuses[orderID] = status
	return nil
}

func (f *fakeStore) WithTx(_ context.Context, fn func(store.Tx) error) error {
	return fn(&fakeTx{f})
}

func (f *fakeStore) LoadResumableOrders(context.Context) ([]store.ResumableOrder, error) {
	return nil, nil
}

func (f *fakeStore) LoadOpenOrdersForMarket(context.Context, uuid.UUID) ([]model.Order, error) {
	return f.openOrders, nil
}

func (f *fakeStore) LoadHoldings(context.Context, uuid.UUID) ([]model.UserHolding, error) {
	return f.existingHolds, nil
}

type fakeTx struct{ f *fakeStore }

func (t *fakeTx) InsertUserTrade(_ context.Context, ut model.UserTrade) error {
	t.f.trades = append(t.f.trades, ut)
	return nil
}

func (t *fakeTx) UpsertHolding(_ context.Context, userID, marketID uuid.UUID, outcome model.Outcome, delta decimal.Decimal) error {
	key := holdKey(userID, marketID, outcome)
	t.f.holdings[key] = t.f.holdings[key].Add(delta)
	return nil
}

func (t *fakeTx) AdjustBalance(_ context.Context, userID uuid.UUID, delta decimal.Decimal) error {
	t.f.balances[userID] = t.f.balances[userID].Add(delta)
	return nil
}

func (t *fakeTx) ZeroHolding(_ context.Context, userID, marketID uuid.UUID, outcome model.Outcome) error {
	t.f.holdings[holdKey(userID, marketID, outcome)] = decimal.Zero
	return nil
}

func (t *fakeTx) MarkOrderExpired(_ context.Context, orderID uuid.UUID) error {
	t.f.statuses[orderID] = model.OrderStatusExpired
	return nil
}

func TestSettleWritesTradesHoldingsAndBalances(t *testing.T) {
	s := newFakeStore()
	marketID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()
	oppositeOrderID := uuid.New()
	s.owners[oppositeOrderID] = sellerID

	takerOrder := &model.Order{
		ID: uuid.New(), UserID: buyerID, MarketID: marketID,
		Outcome: model.OutcomeYES, Side: model.OrderSideBuy,
	}
	matches := []book.MatchOutput{{
		OrderID:                     takerOrder.ID,
		OppositeOrderID:             oppositeOrderID,
		MatchedQuantity:             decimal.RequireFromString("5"),
		Price:                       decimal.RequireFromString("0.5"),
		OppositeOrderTotalQuantity:  decimal.RequireFromString("10"),
		OppositeOrderFilledQuantity: decimal.RequireFromString("5"),
	}}

	err := Settle(context.Background(), s, takerOrder, matches)
	require.NoError(t, err)

	assert.Len(t, s.trades, 2)
	assert.True(t, s.holdings[holdKey(buyerID, marketID, model.OutcomeYES)].Equal(decimal.RequireFromString("5")))
	assert.True(t, s.holdings[holdKey(sellerID, marketID, model.OutcomeYES)].Equal(decimal.RequireFromString("-5")))

	// 5 * 0.5 * 100 = 250
	assert.True(t, s.balances[buyerID].Equal(decimal.RequireFromString("-250")))
	assert.True(t, s.balances[sellerID].Equal(decimal.RequireFromString("250")))

	// Not fully filled: opposite order status untouched.
	_, statusSet := s.statuses[oppositeOrderID]
	assert.False(t, statusSet)
}

func TestSettleMarksOppositeFilledWhenComplete(t *testing.T) {
	s := newFakeStore()
	oppositeOrderID := uuid.New()
	s.owners[oppositeOrderID] = uuid.New()

	takerOrder := &model.Order{ID: uuid.New(), UserID: uuid.New(), MarketID: uuid.New(), Outcome: model.OutcomeYES, Side: model.OrderSideSell}
	matches := []book.MatchOutput{{
		OrderID:                     takerOrder.ID,
		OppositeOrderID:             oppositeOrderID,
		MatchedQuantity:             decimal.RequireFromString("10"),
		Price:                       decimal.RequireFromString("0.4"),
		OppositeOrderTotalQuantity:  decimal.RequireFromString("10"),
		OppositeOrderFilledQuantity: decimal.RequireFromString("10"),
	}}

	err := Settle(context.Background(), s, takerOrder, matches)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, s.statuses[oppositeOrderID])
}

func TestSettleSkipsZeroQuantityMatch(t *testing.T) {
	s := newFakeStore()
	takerOrder := &model.Order{ID: uuid.New(), UserID: uuid.New(), MarketID: uuid.New(), Outcome: model.OutcomeYES, Side: model.OrderSideBuy}
	matches := []book.MatchOutput{{
		OrderID:         takerOrder.ID,
		OppositeOrderID: uuid.New(),
		MatchedQuantity: decimal.Zero,
		Price:           decimal.RequireFromString("0.5"),
	}}

	err := Settle(context.Background(), s, takerOrder, matches)
	require.NoError(t, err)
	assert.Empty(t, s.trades)
	assert.Empty(t, s.balances)
}

func TestSettleSkipsMatchWithMissingOppositeOrder(t *testing.T) {
	s := newFakeStore()
	takerOrder := &model.Order{ID: uuid.New(), UserID: uuid.New(), MarketID: uuid.New(), Outcome: model.OutcomeYES, Side: model.OrderSideBuy}
	matches := []book.MatchOutput{{
		OrderID:                     takerOrder.ID,
		OppositeOrderID:             uuid.New(), // never registered in s.owners
		MatchedQuantity:             decimal.RequireFromString("5"),
		Price:                       decimal.RequireFromString("0.5"),
		OppositeOrderTotalQuantity:  decimal.RequireFromString("5"),
		OppositeOrderFilledQuantity: decimal.RequireFromString("5"),
	}}

	err := Settle(context.Background(), s, takerOrder, matches)
	require.NoError(t, err)
	assert.Empty(t, s.trades)
	assert.Empty(t, s.balances)
}

func TestFinalizeMarketExpiresAndPays(t *testing.T) {
	s := newFakeStore()
	marketID := uuid.New()
	winner := uuid.New()
	loser := uuid.New()

	liveOrder := model.Order{ID: uuid.New(), MarketID: marketID, Status: model.OrderStatusOpen}
	s.openOrders = []model.Order{liveOrder}
	s.existingHolds = []model.UserHolding{
		{UserID: winner, MarketID: marketID, Outcome: model.OutcomeYES, Shares: decimal.RequireFromString("4")},
		{UserID: loser, MarketID: marketID, Outcome: model.OutcomeNO, Shares: decimal.RequireFromString("4")},
	}

	gb := book.NewGlobalBook()
	gb.AddOrder(&model.Order{ID: uuid.New(), MarketID: marketID, Outcome: model.OutcomeYES, Side: model.OrderSideBuy, Price: decimal.RequireFromString("0.5"), Quantity: decimal.RequireFromString("1")}, decimal.RequireFromString("100"))

	err := FinalizeMarket(context.Background(), s, gb, marketID, model.OutcomeYES)
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusExpired, s.statuses[liveOrder.ID])
	// 4 shares * 100 = 400
	assert.True(t, s.balances[winner].Equal(decimal.RequireFromString("400")))
	_, loserPaid := s.balances[loser]
	assert.False(t, loserPaid)
	assert.True(t, s.holdings[holdKey(winner, marketID, model.OutcomeYES)].IsZero())
}
