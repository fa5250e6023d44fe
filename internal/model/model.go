package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Market is a single binary-outcome prediction market.
type Market struct {
	ID          uuid.UUID
	Question    string
	Status      MarketStatus
	LiquidityB  decimal.Decimal
	Winner      *Outcome // nil until settled
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Order is a single resting or immediate order against a market outcome.
type Order struct {
	ID              uuid.UUID
	MarketID        uuid.UUID
	UserID          uuid.UUID
	Outcome         Outcome
	Side            OrderSide
	Type            OrderType
	Status          OrderStatus
	Price           decimal.Decimal
	Quantity        decimal.Decimal // total quantity requested
	FilledQuantity  decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Remaining returns the unfilled quantity of the order.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// UserHolding is a user's net position in one outcome of one market.
type UserHolding struct {
	UserID   uuid.UUID
	MarketID uuid.UUID
	Outcome  Outcome
	Shares   decimal.Decimal
}

// UserTrade records one counterparty's side of a single match.
type UserTrade struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	CounterOrderID  uuid.UUID
	UserID          uuid.UUID
	MarketID        uuid.UUID
	Outcome         Outcome
	Side            OrderSide
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	CreatedAt       time.Time
}

// UserTransaction is a ledger entry against a user's cash balance.
type UserTransaction struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      UserTransactionType
	Status    UserTransactionStatus
	Amount    decimal.Decimal
	CreatedAt time.Time
}
