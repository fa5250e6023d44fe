package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"fenrir/internal/book"
	"fenrir/internal/model"
	"fenrir/internal/store"
)

// Bootstrap replays every order still live in storage (OPEN,
// PENDING_UPDATE, UNSPECIFIED) into a fresh in-memory book at startup, so
// the matching engine's state survives a process restart. Orders are
// replayed oldest-first and rested directly: they were already matched
// against the book when first submitted, so this only restores resting
// state, it never re-matches.
func Bootstrap(ctx context.Context, s store.Store, gb *book.GlobalBook) error {
	resumable, err := s.LoadResumableOrders(ctx)
	if err != nil {
		return fmt.Errorf("load resumable orders: %w", err)
	}

	gb.Lock()
	defer gb.Unlock()

	for _, ro := range resumable {
		o := ro.Order
		if o.Type == model.OrderTypeMarket {
			// Market orders never rest; any that reached here without a
			// terminal status is stale and is skipped.
			continue
		}
		gb.AddOrder(&o, ro.LiquidityB)
	}

	log.Info().Int("count", len(resumable)).Msg("replayed resumable orders into order book")
	return nil
}
