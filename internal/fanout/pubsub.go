package fanout

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"fenrir/internal/book"
)

const bookUpdateSubjectPrefix = "order.market.book.update."

// bookSnapshotPayload is what gets MessagePack-encoded onto the per-market
// book update subject.
type bookSnapshotPayload struct {
	MarketID string           `msgpack:"market_id"`
	Yes      book.Snapshot    `msgpack:"yes"`
	No       book.Snapshot    `msgpack:"no"`
}

// BookUpdateSubject is the NATS subject carrying marketID's book snapshots.
func BookUpdateSubject(marketID uuid.UUID) string {
	return fmt.Sprintf("%s%s", bookUpdateSubjectPrefix, marketID)
}

// PubSub publishes book snapshots over NATS, gated on the matching
// engine's best-effort view of whether anyone is subscribed.
type PubSub struct {
	nc   *nats.Conn
	subs *MarketSubs
}

// NewPubSub constructs a PubSub bound to an established NATS connection.
func NewPubSub(nc *nats.Conn, subs *MarketSubs) *PubSub {
	return &PubSub{nc: nc, subs: subs}
}

// PublishBookSnapshot publishes marketID's YES/NO depth snapshot if, and
// only if, MarketSubs believes the market currently has a subscriber.
func (p *PubSub) PublishBookSnapshot(marketID uuid.UUID, yes, no book.Snapshot) {
	if !p.subs.Has(marketID) {
		return
	}

	payload, err := msgpack.Marshal(bookSnapshotPayload{
		MarketID: marketID.String(),
		Yes:      yes,
		No:       no,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode book snapshot")
		return
	}

	if err := p.nc.Publish(BookUpdateSubject(marketID), payload); err != nil {
		log.Error().Err(err).Str("market_id", marketID.String()).Msg("failed to publish book snapshot")
	}
}
