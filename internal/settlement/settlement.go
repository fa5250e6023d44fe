// Package settlement turns matched orders into durable ledger state: per
// counterparty trade records, net holdings, and cash balance transfers.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/model"
	"fenrir/internal/store"
)

// balanceScale is the fixed-point multiplier applied to qty*price when
// moving cash, matching the ledger's minor-unit convention.
var balanceScale = decimal.NewFromInt(100)

// Settle writes the durable effects of every match produced while
// processing order: for each match, it first updates the opposite order's
// status if that fill completed it, then within one transaction per match
// records both counterparties' trades, updates their holdings, and
// transfers cash between them. Matches are settled serially, in the order
// they were produced.
//
// A match with a zero matched quantity, or whose opposite order can no
// longer be found, is skipped with a warning rather than treated as a hard
// error: the match carries no durable effect to write, and aborting the
// whole batch over one stale match would lose every other fill it was
// settled alongside.
func Settle(ctx context.Context, s store.Store, order *model.Order, matches []book.MatchOutput) error {
	for _, m := range matches {
		if !m.MatchedQuantity.IsPositive() {
			log.Warn().Str("order_id", m.OrderID.String()).Str("opposite_order_id", m.OppositeOrderID.String()).
				Msg("skipping match with zero matched quantity")
			continue
		}

		if m.OppositeOrderFilledQuantity.GreaterThanOrEqual(m.OppositeOrderTotalQuantity) {
			if err := s.UpdateOrderStatus(ctx, m.OppositeOrderID, model.OrderStatusFilled); err != nil {
				return fmt.Errorf("update opposite order status: %w", err)
			}
		}

		counterUserID, err := s.GetOrderOwner(ctx, m.OppositeOrderID)
		if errors.Is(err, store.ErrOrderNotFound) {
			log.Warn().Str("opposite_order_id", m.OppositeOrderID.String()).
				Msg("skipping match whose opposite order no longer exists")
			continue
		}
		if err != nil {
			return fmt.Errorf("load counterparty: %w", err)
		}

		if err := settleOne(ctx, s, order, m, counterUserID); err != nil {
			return fmt.Errorf("settle match %s/%s: %w", m.OrderID, m.OppositeOrderID, err)
		}
	}
	return nil
}

func settleOne(ctx context.Context, s store.Store, order *model.Order, m book.MatchOutput, counterUserID uuid.UUID) error {
	notional := m.Price.Mul(m.MatchedQuantity).Mul(balanceScale)

	buyerID, sellerID := order.UserID, counterUserID
	if order.Side == model.OrderSideSell {
		buyerID, sellerID = counterUserID, order.UserID
	}

	return s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertUserTrade(ctx, model.UserTrade{
			ID:             uuid.New(),
			OrderID:        order.ID,
			CounterOrderID: m.OppositeOrderID,
			UserID:         order.UserID,
			MarketID:       order.MarketID,
			Outcome:        order.Outcome,
			Side:           order.Side,
			Price:          m.Price,
			Quantity:       m.MatchedQuantity,
		}); err != nil {
			return fmt.Errorf("insert trade for taker: %w", err)
		}

		if err := tx.InsertUserTrade(ctx, model.UserTrade{
			ID:             uuid.New(),
			OrderID:        m.OppositeOrderID,
			CounterOrderID: order.ID,
			UserID:         counterUserID,
			MarketID:       order.MarketID,
			Outcome:        order.Outcome,
			Side:           oppositeSide(order.Side),
			Price:          m.Price,
			Quantity:       m.MatchedQuantity,
		}); err != nil {
			return fmt.Errorf("insert trade for maker: %w", err)
		}

		if err := tx.UpsertHolding(ctx, buyerID, order.MarketID, order.Outcome, m.MatchedQuantity); err != nil {
			return fmt.Errorf("credit buyer holding: %w", err)
		}
		if err := tx.UpsertHolding(ctx, sellerID, order.MarketID, order.Outcome, m.MatchedQuantity.Neg()); err != nil {
			return fmt.Errorf("debit seller holding: %w", err)
		}

		if err := tx.AdjustBalance(ctx, buyerID, notional.Neg()); err != nil {
			return fmt.Errorf("debit buyer balance: %w", err)
		}
		if err := tx.AdjustBalance(ctx, sellerID, notional); err != nil {
			return fmt.Errorf("credit seller balance: %w", err)
		}

		return nil
	})
}

func oppositeSide(side model.OrderSide) model.OrderSide {
	if side == model.OrderSideBuy {
		return model.OrderSideSell
	}
	return model.OrderSideBuy
}
