package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/designjam/go/clients/competition_client"
	"github.com/mcdev12/designjam/go/internal/appconfig"
	"github.com/mcdev12/designjam/go/internal/competition/countdown"
	"github.com/mcdev12/designjam/go/internal/competition/gateway"
	"github.com/mcdev12/designjam/go/internal/competition/invalidation"
	"github.com/mcdev12/designjam/go/internal/competition/leaderboard"
	"github.com/mcdev12/designjam/go/internal/competition/voting"
	"github.com/mcdev12/designjam/go/internal/querycache"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	log.Info().
		Str("api", cfg.API.BaseURL).
		Bool("authenticated", cfg.API.Token != "").
		Str("nats_url", cfg.NATS.URL).
		Str("addr", cfg.FeedAddr()).
		Msg("starting countdown gateway")

	client := competition_client.NewCompetitionClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
	cache := querycache.New()

	votingService := voting.NewService(client, cache)
	leaderboardService := leaderboard.NewService(client, cache)

	// The engine and the gateway depend on each other through the invalidation fanout,
	// so the fanout is filled in once both exist.
	targets := invalidation.Fanout{cache}
	engine := countdown.NewEngine(client, cfg.EngineConfig(), countdown.WithInvalidator(&targets))
	defer engine.Close()

	var nc *nats.Conn
	var publisher *invalidation.NATSPublisher
	natsCfg := invalidation.DefaultNATSConfig()
	if cfg.NATS.URL != "" {
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix

		nc, err = invalidation.Connect(natsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Drain()

		publisher = invalidation.NewNATSPublisher(nc, natsCfg.SubjectPrefix, nil)
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.AllowedOrigins = cfg.Feed.AllowedOrigins
	gatewayConfig.ConnectionConfig.PingInterval = cfg.Feed.PingInterval
	if nc != nil {
		gatewayConfig.NATSConnected = nc.IsConnected
	}
	gatewayService := gateway.NewService(engine, votingService, leaderboardService, gatewayConfig)
	targets = append(targets, gatewayService)

	if publisher != nil {
		targets = append(targets, publisher)

		_, err = invalidation.Listen(nc, natsCfg.SubjectPrefix, func(evt invalidation.Event) {
			if evt.Source == publisher.Source() {
				return
			}
			relayRemoteInvalidation(cache, gatewayService, evt)
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to listen for invalidations")
		}
	}

	server := gateway.NewServer(cfg.FeedAddr(), gatewayService.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go gatewayService.Start(ctx)

	// Keep the engine ticking while no client is connected so phase edges are never missed.
	sub, err := engine.Start(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start countdown engine")
	}
	go func() {
		for snap := range sub.Updates() {
			log.Trace().
				Str("status", string(snap.Status)).
				Str("phase", snap.Phase().String()).
				Str("timer", snap.Timer()).
				Msg("countdown")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	engine.Stop(sub)
	cancel()

	log.Info().Msg("countdown gateway shutdown complete")
}

// relayRemoteInvalidation applies an invalidation published by another process.
func relayRemoteInvalidation(cache *querycache.Cache, gw *gateway.Service, evt invalidation.Event) {
	if err := cache.Invalidate(context.Background(), evt.Namespace); err != nil {
		log.Error().Err(err).Str("namespace", evt.Namespace).Msg("failed to drop cached data")
	}
	if err := gw.RelayInvalidation(evt); err != nil {
		log.Error().Err(err).Str("namespace", evt.Namespace).Msg("failed to relay invalidation")
	}
	log.Info().
		Str("namespace", evt.Namespace).
		Str("source", evt.Source).
		Str("phase", evt.Phase).
		Msg("applied remote invalidation")
}
