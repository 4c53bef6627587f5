// Command server runs the triage backend HTTP API.
//
// Startup order: environment (.env is optional), configuration, logging,
// database open + migration, OpenTelemetry, router, HTTP server. Shutdown
// is graceful: SIGINT/SIGTERM drains in-flight requests before the tracer
// provider and process exit.
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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ihirwe/go-triage-backend/internal/config"
	httpapi "github.com/ihirwe/go-triage-backend/internal/http"
	"github.com/ihirwe/go-triage-backend/internal/observability"
	"github.com/ihirwe/go-triage-backend/internal/repo"
	"github.com/ihirwe/go-triage-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		sysutil.UsePrettyOutput(os.Stderr)
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting triage backend")

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	shutdownOTel, err := observability.SetupOTel(context.Background(), cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup opentelemetry")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	if err := shutdownOTel(ctx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown")
	}
	log.Info().Msg("stopped")
}
