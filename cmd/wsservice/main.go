package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/broadcast"
	"fenrir/internal/config"
)

const listenAddr = ":8081"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg := config.Load()

	hub := broadcast.NewHub()
	srv := broadcast.NewServer(hub, cfg.SharedSecret)

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to acquire jetstream context")
	}

	relay, err := broadcast.NewRelay(js, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start book update relay")
	}

	var t tomb.Tomb
	relayDone := make(chan struct{})
	t.Go(func() error {
		relay.Run(relayDone)
		return nil
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		srv.ServeHTTP(&t, w, r)
	})

	httpSrv := &http.Server{Addr: listenAddr, Handler: mux}
	t.Go(func() error {
		log.Info().Str("addr", listenAddr).Msg("websocket broadcaster listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	<-ctx.Done()
	close(relayDone)
	t.Kill(nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down websocket broadcaster")
	}

	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("websocket broadcaster exited with error")
	}
}
