// Package dispatch consumes the durable order-command stream and turns
// each message into a matching-engine call, a settlement transaction, and
// a fanout publish. Every message is acknowledged regardless of outcome:
// this is an at-least-once, ack-no-matter-what pipeline, by design.
package dispatch

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/fanout"
	"fenrir/internal/store"
)

const (
	streamName    = "ORDER"
	subjectPrefix = "order.>"
	durableName   = "order_os"
	fetchBatch    = 32
	fetchWait     = 2 * time.Second
)

// Dispatcher owns the pull consumer against the ORDER stream and the
// single exclusive lock around the global book for the duration of each
// command it processes.
type Dispatcher struct {
	js    nats.JetStreamContext
	sub   *nats.Subscription
	Book  *book.GlobalBook
	Store store.Store
	Fan   *fanout.Fanout
	Subs  *fanout.MarketSubs
}

// New binds a Dispatcher to an already-connected NATS JetStream context,
// creating the ORDER stream and its durable pull consumer if they don't
// already exist.
func New(js nats.JetStreamContext, gb *book.GlobalBook, s store.Store, fan *fanout.Fanout, subs *fanout.MarketSubs) (*Dispatcher, error) {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix},
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return nil, err
	}

	sub, err := js.PullSubscribe(subjectPrefix, durableName, nats.BindStream(streamName))
	if err != nil {
		return nil, err
	}

	return &Dispatcher{js: js, sub: sub, Book: gb, Store: s, Fan: fan, Subs: subs}, nil
}

// Run pulls batches of messages until t is dying, dispatching and
// acknowledging each one. A Fetch timeout is not an error: it just means
// no commands arrived this tick.
func (d *Dispatcher) Run(t *tomb.Tomb) error {
	log.Info().Str("durable", durableName).Msg("order dispatcher starting")
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msgs, err := d.sub.Fetch(fetchBatch, nats.MaxWait(fetchWait))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			log.Error().Err(err).Msg("error fetching order commands")
			continue
		}

		for _, msg := range msgs {
			d.dispatch(context.Background(), msg)
		}
	}
}

// dispatch routes msg by subject to its handler and always acks, logging
// (but never surfacing) any handler error, matching the "ack no matter
// what" failure policy for this stream.
func (d *Dispatcher) dispatch(ctx context.Context, msg *nats.Msg) {
	defer func() {
		if err := msg.Ack(); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to ack order command")
		}
	}()

	var err error
	switch msg.Subject {
	case SubjectCreate:
		err = d.handleCreate(ctx, msg.Data)
	case SubjectMarketOrderCreate:
		err = d.handleMarketOrderCreate(ctx, msg.Data)
	case SubjectCancel:
		err = d.handleCancel(ctx, msg.Data)
	case SubjectUpdate:
		err = d.handleUpdate(ctx, msg.Data)
	case SubjectInitializeOrderBook:
		err = d.handleInitializeOrderBook(ctx, msg.Data)
	case SubjectFinalizeMarket:
		err = d.handleFinalizeMarket(ctx, msg.Data)
	default:
		log.Warn().Str("subject", msg.Subject).Msg("received command on unrecognized subject")
		return
	}

	commandsProcessed.WithLabelValues(msg.Subject).Inc()
	if err != nil {
		commandErrors.WithLabelValues(msg.Subject).Inc()
		log.Error().Err(err).Str("subject", msg.Subject).Msg("order command handler failed")
	}
}
