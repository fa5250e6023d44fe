package dispatch

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"fenrir/internal/model"
)

// createPayload is the body of order.create and order.market_order_create.
// Budget is only populated for market orders; zero otherwise.
type createPayload struct {
	OrderID  uuid.UUID       `msgpack:"order_id"`
	MarketID uuid.UUID       `msgpack:"market_id"`
	UserID   uuid.UUID       `msgpack:"user_id"`
	Outcome  model.Outcome   `msgpack:"outcome"`
	Side     model.OrderSide `msgpack:"side"`
	Price    decimal.Decimal `msgpack:"price"`
	Quantity decimal.Decimal `msgpack:"quantity"`
	Budget   decimal.Decimal `msgpack:"budget"`
}

// cancelPayload is the body of order.cancel.
type cancelPayload struct {
	OrderID uuid.UUID `msgpack:"order_id"`
}

// updatePayload is the body of order.update.
type updatePayload struct {
	OrderID  uuid.UUID       `msgpack:"order_id"`
	Price    decimal.Decimal `msgpack:"price"`
	Quantity decimal.Decimal `msgpack:"quantity"`
}

// orderPayload is one order inside an initializeOrderBookPayload batch,
// carrying everything needed to both rest it in the in-memory book and
// persist it as a row.
type orderPayload struct {
	OrderID        uuid.UUID         `msgpack:"order_id"`
	MarketID       uuid.UUID         `msgpack:"market_id"`
	UserID         uuid.UUID         `msgpack:"user_id"`
	Outcome        model.Outcome     `msgpack:"outcome"`
	Side           model.OrderSide   `msgpack:"side"`
	Type           model.OrderType   `msgpack:"type"`
	Status         model.OrderStatus `msgpack:"status"`
	Price          decimal.Decimal   `msgpack:"price"`
	Quantity       decimal.Decimal   `msgpack:"quantity"`
	FilledQuantity decimal.Decimal   `msgpack:"filled_quantity"`
}

// initializeOrderBookPayload is the body of order.initialize_order_book,
// issued once when a market is created to seed its book with bootstrap
// liquidity before any real order arrives for it. market_id is carried per
// order, not at the top level, since the batch is the source of truth for
// which market this is.
type initializeOrderBookPayload struct {
	LiquidityB decimal.Decimal `msgpack:"liquidity_b"`
	Orders     []orderPayload  `msgpack:"orders"`
}

// finalizeMarketPayload is the body of order.finalize_market.
type finalizeMarketPayload struct {
	MarketID uuid.UUID     `msgpack:"market_id"`
	Winner   model.Outcome `msgpack:"winner"`
}

func decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
