package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/config"
	"fenrir/internal/dispatch"
	"fenrir/internal/fanout"
	"fenrir/internal/store"
)

const metricsAddr = ":9100"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg := config.Load()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to acquire jetstream context")
	}

	gb := book.NewGlobalBook()
	if err := dispatch.Bootstrap(ctx, db, gb); err != nil {
		log.Fatal().Err(err).Msg("failed to replay resting orders at startup")
	}

	subs := fanout.NewMarketSubs()
	analytics := fanout.NewAnalytics(cfg.KafkaURL)
	defer analytics.Close()

	pubsub := fanout.NewPubSub(nc, subs)

	poster, err := fanout.DialPoster(cfg.WSServerURL, cfg.SharedSecret, subs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial broadcaster uplink")
	}
	defer poster.Close()

	fan := fanout.New(analytics, pubsub, poster)

	d, err := dispatch.New(js, gb, db, fan, subs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start order dispatcher")
	}

	var t tomb.Tomb
	t.Go(func() error {
		return d.Run(&t)
	})
	t.Go(func() error {
		log.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	select {
	case <-ctx.Done():
		t.Kill(nil)
	case <-t.Dying():
	}

	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("order dispatcher exited with error")
	}
}
