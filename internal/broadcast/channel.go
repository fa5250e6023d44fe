package broadcast

import (
	"fmt"

	"github.com/google/uuid"
)

// Channel is a fanout topic clients can subscribe to. Market-scoped
// channels are parameterized by market id; the poster channels are
// singletons used by the privileged uplink only.
type Channel string

const (
	channelPriceUpdatePrefix     = "price_update"
	channelOrderBookUpdatePrefix = "order_book_update"

	// ChannelPricePoster is the singleton price-poster channel name. A
	// Fanout's price pushes do not use it: they name the market's
	// PriceUpdateChannel directly.
	ChannelPricePoster Channel = "price_poster"
	// ChannelOrderBookPoster is the uplink a Fanout uses to push book
	// snapshots that bypass the pub/sub relay (reserved for direct push).
	ChannelOrderBookPoster Channel = "order_book_poster"
)

// PriceUpdateChannel is the per-market channel clients subscribe to for
// price ticks.
func PriceUpdateChannel(marketID uuid.UUID) Channel {
	return Channel(fmt.Sprintf("%s:%s", channelPriceUpdatePrefix, marketID))
}

// OrderBookUpdateChannel is the per-market channel clients subscribe to
// for depth snapshots.
func OrderBookUpdateChannel(marketID uuid.UUID) Channel {
	return Channel(fmt.Sprintf("%s:%s", channelOrderBookUpdatePrefix, marketID))
}
