package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "parlor/internal/adapters/http"
	"parlor/internal/bridge"
	"parlor/internal/config"
	"parlor/internal/gateway"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var store bridge.Store
	if cfg.Release() && cfg.DataDir != "" {
		store, err = bridge.OpenBadger(cfg.DataDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open store")
		}
	} else {
		store = bridge.NewMemory()
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	var verifier gateway.TokenVerifier
	if cfg.Release() {
		verifier = gateway.NewJWTVerifier(cfg.Secret)
	} else {
		verifier = gateway.DevVerifier{}
	}

	registry := gateway.NewRegistry()
	rt := gateway.NewRouter(registry, store, cfg.HistoryLimit)
	ctl := gateway.NewController(registry, rt, verifier, store, cfg.AllowedOrigins)
	ctl.PingPeriod = cfg.PingPeriod
	ctl.ReadLimit = cfg.ReadLimit

	r := router.SetupRouter(cfg, ctl, store)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Bool("store_available", store.Available()).Msg("gateway started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
