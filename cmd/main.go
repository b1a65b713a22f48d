package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bombtag-matchmaker/api"
	"bombtag-matchmaker/config"
	"bombtag-matchmaker/matchmaking"
	"bombtag-matchmaker/matchtoken"
	"bombtag-matchmaker/registry"
	"bombtag-matchmaker/rooms"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

func setLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setLogger(cfg.LogLevel)

	log.Info().Msgf("Starting bombtag-matchmaker version: %s", version)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := registry.New()
	tokens := matchtoken.New(cfg.Match.TokenSecret, cfg.TokenTTL())
	engine := matchmaking.New(servers, tokens)
	roomSvc := rooms.NewService(&cfg.Host)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           api.New(engine, servers, roomSvc, tokens).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting matchmaker server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Block until shutdown
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
	engine.Close()
	log.Info().Msg("shutdown complete")
}
