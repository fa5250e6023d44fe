package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fenrir/internal/book"
	"fenrir/internal/model"
	"fenrir/internal/store"
)

// winningPayout is the cash credited per winning share, matching the
// ledger's minor-unit convention used elsewhere in settlement.
var winningPayout = balanceScale

// FinalizeMarket closes out a settled market: every order still live
// (OPEN, PENDING_UPDATE, PENDING_CANCEL) transitions to EXPIRED, every
// holder of the winning outcome is credited per share and every holding
// for the market is zeroed, and the market's in-memory book is dropped.
//
// This is not named as an operation in the distilled order lifecycle, but
// is required for a market settlement to actually pay out; without it
// resting orders and holdings would survive a settled market forever.
func FinalizeMarket(ctx context.Context, s store.Store, gb *book.GlobalBook, marketID uuid.UUID, winner model.Outcome) error {
	openOrders, err := s.LoadOpenOrdersForMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("load open orders: %w", err)
	}

	holdings, err := s.LoadHoldings(ctx, marketID)
	if err != nil {
		return fmt.Errorf("load holdings: %w", err)
	}

	err = s.WithTx(ctx, func(tx store.Tx) error {
		for _, o := range openOrders {
			if err := tx.MarkOrderExpired(ctx, o.ID); err != nil {
				return fmt.Errorf("expire order %s: %w", o.ID, err)
			}
		}

		for _, h := range holdings {
			if h.Outcome == winner && h.Shares.IsPositive() {
				if err := tx.AdjustBalance(ctx, h.UserID, h.Shares.Mul(winningPayout)); err != nil {
					return fmt.Errorf("credit winner %s: %w", h.UserID, err)
				}
			}
			if err := tx.ZeroHolding(ctx, h.UserID, marketID, h.Outcome); err != nil {
				return fmt.Errorf("zero holding for %s: %w", h.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	gb.Lock()
	gb.RemoveMarket(marketID)
	gb.Unlock()

	return nil
}
