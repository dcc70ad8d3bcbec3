// Command server runs the location broker HTTP API.
//
//	@title			Location Broker API
//	@version		1.0
//	@description	Ingests OwnTracks-style location reports, archives the raw requests to a message bus and exports reconstructed tracks.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-location-broker/internal/archive"
	"github.com/tbourn/go-location-broker/internal/config"
	httpapi "github.com/tbourn/go-location-broker/internal/http"
	"github.com/tbourn/go-location-broker/internal/observability"
	"github.com/tbourn/go-location-broker/internal/repo"
	"github.com/tbourn/go-location-broker/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, os.Stdout)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup error")
	}

	db, err := repo.Open(cfg.DB, cfg.OTEL.Enabled)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("db connect error")
	}

	pub, err := archive.Open(cfg.Bus, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Bus.Driver).Msg("bus connect error")
	}

	r := gin.New()
	if err := httpapi.RegisterRoutes(r, db, archive.NewArchiver(pub), cfg); err != nil {
		log.Fatal().Err(err).Msg("route setup error")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Strs("decoders", cfg.EnabledDecoders).
			Str("bus", cfg.Bus.Driver).
			Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := pub.Close(); err != nil {
		log.Error().Err(err).Msg("bus close")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}
