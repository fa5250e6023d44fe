// Package fanout publishes the three independent views of exchange
// activity that follow a processed order: an append-only analytics log, a
// gated pub/sub book snapshot, and a direct price push to the websocket
// broadcaster. All three are fire-and-forget relative to the caller: a
// failure here is logged and never retried or surfaced back to the order
// that triggered it.
package fanout

import (
	"fenrir/internal/book"
	"fenrir/internal/model"
)

// Fanout bundles the three outbound channels so callers have one thing to
// hold and call after a command has been matched and settled.
type Fanout struct {
	Analytics *Analytics
	PubSub    *PubSub
	Poster    *Poster
}

// New constructs a Fanout from its three already-dialed channels.
func New(analytics *Analytics, pubsub *PubSub, poster *Poster) *Fanout {
	return &Fanout{Analytics: analytics, PubSub: pubsub, Poster: poster}
}

// Publish runs all three fanout channels for one processed order. mb is
// the order's market book, read after matching/bookkeeping has completed
// so the snapshot and price reflect the order's effect.
func (f *Fanout) Publish(o *model.Order, mb *book.MarketBook) {
	f.Analytics.PublishOrderUpdate(o, mb)
	f.PubSub.PublishBookSnapshot(o.MarketID, mb.YesBook.GetOrderBook(), mb.NoBook.GetOrderBook())
	f.Poster.PostPrice(o.MarketID, mb.CurrentYesPrice.String(), mb.CurrentNoPrice.String())
}
