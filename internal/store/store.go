// Package store defines the persistence boundary settlement and bootstrap
// depend on, plus a Postgres-backed implementation of it.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fenrir/internal/model"
)

// ErrOrderNotFound is returned by GetOrder/GetOrderOwner when orderID does
// not exist, so callers can distinguish a missing row from a real storage
// failure.
var ErrOrderNotFound = errors.New("order not found")

// Store is everything settlement and bootstrap need from the database.
// Kept narrow and interface-typed so settlement logic can be tested
// without a live Postgres instance.
type Store interface {
	// GetOrder loads an order by id in full, including its current status,
	// market, side and price - everything a dispatch handler needs to
	// re-validate a command against its current state.
	GetOrder(ctx context.Context, orderID uuid.UUID) (model.Order, error)

	// GetOrderOwner returns the user id that owns orderID.
	GetOrderOwner(ctx context.Context, orderID uuid.UUID) (uuid.UUID, error)

	// UpdateOrderStatus transitions orderID to status outside of any
	// enclosing transaction, matching the original settlement sequence's
	// treatment of the opposite order's status update.
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) error

	// WithTx runs fn inside one transaction, committing on a nil return
	// and rolling back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// LoadResumableOrders returns every order whose status means it should
	// be replayed into the in-memory book at startup (OPEN, PENDING_UPDATE,
	// UNSPECIFIED), joined with its market's liquidity parameter.
	LoadResumableOrders(ctx context.Context) ([]ResumableOrder, error)

	// LoadOpenOrdersForMarket returns every order against marketID whose
	// status means it is still live when the market is finalized (OPEN,
	// PENDING_UPDATE, PENDING_CANCEL).
	LoadOpenOrdersForMarket(ctx context.Context, marketID uuid.UUID) ([]model.Order, error)

	// LoadHoldings returns every non-zero holding a user has in marketID.
	LoadHoldings(ctx context.Context, marketID uuid.UUID) ([]model.UserHolding, error)

	// InsertOrder persists a newly submitted order.
	InsertOrder(ctx context.Context, o *model.Order) error

	// UpdateOrderFields persists a resting order's new price/quantity.
	UpdateOrderFields(ctx context.Context, orderID uuid.UUID, price, quantity decimal.Decimal) error

	// GetMarket loads a market by id, including its liquidity parameter.
	GetMarket(ctx context.Context, marketID uuid.UUID) (model.Market, error)

	// UpdateMarketStatus transitions a market's status and, when settling,
	// records its winning outcome.
	UpdateMarketStatus(ctx context.Context, marketID uuid.UUID, status model.MarketStatus, winner *model.Outcome) error
}

// ResumableOrder pairs an order with the liquidity parameter of its
// market, since bootstrap needs both to replay into the book.
type ResumableOrder struct {
	Order      model.Order
	LiquidityB decimal.Decimal
}

// Tx is the set of mutations settlement performs within one transaction
// per match.
type Tx interface {
	InsertUserTrade(ctx context.Context, t model.UserTrade) error
	UpsertHolding(ctx context.Context, userID, marketID uuid.UUID, outcome model.Outcome, deltaShares decimal.Decimal) error
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) error
	ZeroHolding(ctx context.Context, userID, marketID uuid.UUID, outcome model.Outcome) error
	MarkOrderExpired(ctx context.Context, orderID uuid.UUID) error
}
