package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/model"
	"fenrir/internal/settlement"
	"fenrir/internal/store"
)

// handleCreate processes a new resting limit order: persists it, matches
// it against the book, settles any resulting trades, and fans the result
// out. Grounded on the original create-order command handler.
//
// The command stream is at-least-once: a redelivered order.create for an
// order already resting OPEN (e.g. replayed from bootstrap, or re-delivered
// after an ack was lost) is acked and skipped without touching the book
// again.
func (d *Dispatcher) handleCreate(ctx context.Context, data []byte) error {
	var p createPayload
	if err := decode(data, &p); err != nil {
		return wrapErr(SubjectCreate, fmt.Errorf("decode: %w", err))
	}

	existing, err := d.Store.GetOrder(ctx, p.OrderID)
	if err == nil && existing.Status == model.OrderStatusOpen {
		log.Info().Str("order_id", p.OrderID.String()).Msg("order.create redelivered for an already-open order, skipping")
		return nil
	}
	if err != nil && !errors.Is(err, store.ErrOrderNotFound) {
		return wrapErr(SubjectCreate, fmt.Errorf("load existing order: %w", err))
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID: p.OrderID, MarketID: p.MarketID, UserID: p.UserID,
		Outcome: p.Outcome, Side: p.Side, Type: model.OrderTypeLimit,
		Status: model.OrderStatusOpen, Price: p.Price, Quantity: p.Quantity,
		CreatedAt: now, UpdatedAt: now,
	}

	if err := d.Store.InsertOrder(ctx, order); err != nil {
		return wrapErr(SubjectCreate, fmt.Errorf("insert order: %w", err))
	}

	market, err := d.Store.GetMarket(ctx, p.MarketID)
	if err != nil {
		return wrapErr(SubjectCreate, fmt.Errorf("load market: %w", err))
	}

	d.Book.Lock()
	matches := d.Book.ProcessOrder(order, market.LiquidityB)
	mb, _ := d.Book.GetMarketBook(p.MarketID)
	d.Book.Unlock()

	return d.finishCommand(ctx, SubjectCreate, order, matches, mb)
}

// handleMarketOrderCreate processes an immediate-or-cancel market order,
// sized to the requesting budget.
func (d *Dispatcher) handleMarketOrderCreate(ctx context.Context, data []byte) error {
	var p createPayload
	if err := decode(data, &p); err != nil {
		return wrapErr(SubjectMarketOrderCreate, fmt.Errorf("decode: %w", err))
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID: p.OrderID, MarketID: p.MarketID, UserID: p.UserID,
		Outcome: p.Outcome, Side: p.Side, Type: model.OrderTypeMarket,
		Status: model.OrderStatusOpen, Quantity: decimal.Zero,
		CreatedAt: now, UpdatedAt: now,
	}

	if err := d.Store.InsertOrder(ctx, order); err != nil {
		return wrapErr(SubjectMarketOrderCreate, fmt.Errorf("insert order: %w", err))
	}

	d.Book.Lock()
	matches := d.Book.CreateMarketOrder(p.MarketID, order, p.Budget)
	mb, _ := d.Book.GetMarketBook(p.MarketID)
	d.Book.Unlock()

	return d.finishCommand(ctx, SubjectMarketOrderCreate, order, matches, mb)
}

// handleCancel drops a resting order from the book. A precondition
// mismatch (order already gone, not actually pending cancellation) is
// idempotent: the command is still considered handled and acked.
func (d *Dispatcher) handleCancel(ctx context.Context, data []byte) error {
	var p cancelPayload
	if err := decode(data, &p); err != nil {
		return wrapErr(SubjectCancel, fmt.Errorf("decode: %w", err))
	}

	order, err := d.Store.GetOrder(ctx, p.OrderID)
	if errors.Is(err, store.ErrOrderNotFound) {
		log.Warn().Str("order_id", p.OrderID.String()).Msg("cancel requested for unknown order")
		return nil
	}
	if err != nil {
		return wrapErr(SubjectCancel, fmt.Errorf("load order: %w", err))
	}

	if order.Status != model.OrderStatusPendingCxl {
		log.Warn().Str("order_id", p.OrderID.String()).Str("status", string(order.Status)).
			Msg("cancel requested for order not pending cancellation")
		return nil
	}

	d.Book.Lock()
	removed := d.Book.RemoveOrder(&order)
	d.Book.Unlock()

	if !removed {
		log.Warn().Str("order_id", p.OrderID.String()).Msg("cancel requested for order not resting in book")
		return nil
	}

	if err := d.Store.UpdateOrderStatus(ctx, p.OrderID, model.OrderStatusCancelled); err != nil {
		return wrapErr(SubjectCancel, fmt.Errorf("update status: %w", err))
	}
	return nil
}

// handleUpdate moves a resting order to a new price/quantity and re-runs it
// through the book so it re-matches at its new price before resting again.
// Grounded on the original update-order command handler's update-then-
// rematch sequence. A precondition mismatch (order not pending update, or
// no longer resting) is idempotent: acked without effect.
func (d *Dispatcher) handleUpdate(ctx context.Context, data []byte) error {
	var p updatePayload
	if err := decode(data, &p); err != nil {
		return wrapErr(SubjectUpdate, fmt.Errorf("decode: %w", err))
	}

	order, err := d.Store.GetOrder(ctx, p.OrderID)
	if errors.Is(err, store.ErrOrderNotFound) {
		log.Warn().Str("order_id", p.OrderID.String()).Msg("update requested for unknown order")
		return nil
	}
	if err != nil {
		return wrapErr(SubjectUpdate, fmt.Errorf("load order: %w", err))
	}

	if order.Status != model.OrderStatusPendingUpd {
		log.Warn().Str("order_id", p.OrderID.String()).Str("status", string(order.Status)).
			Msg("update requested for order not pending update")
		return nil
	}

	oldPrice := order.Price
	d.Book.Lock()
	applied := d.Book.UpdateOrder(&order, oldPrice, p.Price, p.Quantity)
	var matches []book.MatchOutput
	var mb *book.MarketBook
	if applied {
		matches = d.Book.ProcessOrderWithoutLiquidity(&order)
		mb, _ = d.Book.GetMarketBook(order.MarketID)
	}
	d.Book.Unlock()

	if !applied {
		log.Warn().Str("order_id", p.OrderID.String()).Msg("update requested for order not resting in book")
		return nil
	}

	if err := d.Store.UpdateOrderFields(ctx, p.OrderID, p.Price, p.Quantity); err != nil {
		return wrapErr(SubjectUpdate, fmt.Errorf("persist new fields: %w", err))
	}

	return d.finishCommand(ctx, SubjectUpdate, &order, matches, mb)
}

// handleInitializeOrderBook seeds a market's in-memory book with its batch
// of bootstrap liquidity orders, pinning the liquidity parameter so the
// first real order doesn't silently fall back to b=0 midpoint pricing, then
// fans out each seeded order's effect on the book. Grounded on the original
// add-order bootstrap handler's single write-locked add pass followed by a
// separate publish pass.
func (d *Dispatcher) handleInitializeOrderBook(ctx context.Context, data []byte) error {
	var p initializeOrderBookPayload
	if err := decode(data, &p); err != nil {
		return wrapErr(SubjectInitializeOrderBook, fmt.Errorf("decode: %w", err))
	}

	if len(p.Orders) == 0 {
		log.Warn().Msg("order.initialize_order_book received with an empty order batch")
		return nil
	}
	marketID := p.Orders[0].MarketID

	now := time.Now().UTC()
	orders := make([]*model.Order, 0, len(p.Orders))

	d.Book.Lock()
	d.Book.InitializeMarket(marketID, p.LiquidityB)
	for _, op := range p.Orders {
		order := &model.Order{
			ID: op.OrderID, MarketID: op.MarketID, UserID: op.UserID,
			Outcome: op.Outcome, Side: op.Side, Type: op.Type,
			Status: op.Status, Price: op.Price, Quantity: op.Quantity,
			FilledQuantity: op.FilledQuantity, CreatedAt: now, UpdatedAt: now,
		}
		d.Book.AddOrder(order, p.LiquidityB)
		orders = append(orders, order)
	}
	mb, _ := d.Book.GetMarketBook(marketID)
	d.Book.Unlock()

	for _, order := range orders {
		if err := d.Store.InsertOrder(ctx, order); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to persist bootstrap order")
			continue
		}
		if mb != nil && d.Fan != nil {
			d.Fan.Publish(order, mb)
		}
	}
	return nil
}

// handleFinalizeMarket settles a market: pays winning holders, expires
// remaining orders, and drops the market's book.
func (d *Dispatcher) handleFinalizeMarket(ctx context.Context, data []byte) error {
	var p finalizeMarketPayload
	if err := decode(data, &p); err != nil {
		return wrapErr(SubjectFinalizeMarket, fmt.Errorf("decode: %w", err))
	}

	if err := settlement.FinalizeMarket(ctx, d.Store, d.Book, p.MarketID, p.Winner); err != nil {
		return wrapErr(SubjectFinalizeMarket, fmt.Errorf("finalize: %w", err))
	}

	winner := p.Winner
	if err := d.Store.UpdateMarketStatus(ctx, p.MarketID, model.MarketStatusSettled, &winner); err != nil {
		return wrapErr(SubjectFinalizeMarket, fmt.Errorf("update market status: %w", err))
	}
	return nil
}

// finishCommand settles any matches a create-style command produced and
// fans the result out. It runs even when matches is empty, since the
// fanout channels always report the order's latest book state.
func (d *Dispatcher) finishCommand(ctx context.Context, subject string, order *model.Order, matches []book.MatchOutput, mb *book.MarketBook) error {
	if len(matches) > 0 {
		if err := settlement.Settle(ctx, d.Store, order, matches); err != nil {
			return wrapErr(subject, fmt.Errorf("settle: %w", err))
		}
		matchesSettled.Add(float64(len(matches)))
	}

	if err := d.Store.UpdateOrderStatus(ctx, order.ID, order.Status); err != nil {
		log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to persist final order status")
	}

	if mb != nil && d.Fan != nil {
		d.Fan.Publish(order, mb)
	}
	return nil
}
