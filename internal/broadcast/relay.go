package broadcast

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	bookUpdateSubject = "order.market.book.update.*"
	relayStreamName   = "ORDER"
	relayDurableName  = "order_ws"
	bookUpdatePrefix  = "order.market.book.update."
	relayFetchWait    = 2 * time.Second
)

// Relay is the broadcaster's own durable JetStream consumer: it republishes
// book snapshots the matching engine's side publishes onto
// order.market.book.update.{market_id} to this process's Hub, so websocket
// subscribers of that market's OrderBookUpdate channel receive them.
type Relay struct {
	hub *Hub
	sub *nats.Subscription
}

// NewRelay binds a Relay to js, creating its durable pull consumer against
// the ORDER stream if it does not already exist.
func NewRelay(js nats.JetStreamContext, hub *Hub) (*Relay, error) {
	sub, err := js.PullSubscribe(bookUpdateSubject, relayDurableName, nats.BindStream(relayStreamName))
	if err != nil {
		return nil, err
	}
	return &Relay{hub: hub, sub: sub}, nil
}

// Run pulls book-snapshot messages until done is closed, forwarding each to
// its market's OrderBookUpdate channel and always acking.
func (r *Relay) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		msgs, err := r.sub.Fetch(32, nats.MaxWait(relayFetchWait))
		if err != nil {
			if err != nats.ErrTimeout {
				log.Error().Err(err).Msg("error fetching book update relay messages")
			}
			continue
		}

		for _, msg := range msgs {
			r.forward(msg)
			if err := msg.Ack(); err != nil {
				log.Error().Err(err).Msg("failed to ack book update relay message")
			}
		}
	}
}

func (r *Relay) forward(msg *nats.Msg) {
	idStr := strings.TrimPrefix(msg.Subject, bookUpdatePrefix)
	marketID, err := uuid.Parse(idStr)
	if err != nil {
		log.Warn().Str("subject", msg.Subject).Msg("book update relay received malformed subject")
		return
	}
	r.hub.Publish(OrderBookUpdateChannel(marketID), msg.Data)
}
