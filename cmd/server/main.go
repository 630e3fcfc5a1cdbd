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

	router "github.com/dkeye/peercall/internal/adapters/http"
	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/config"
	"github.com/dkeye/peercall/internal/metrics"
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
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	collector := metrics.NewPrometheusCollector()
	hub := app.NewHub(32)
	mailbox := app.NewMailbox(cfg.CallTTL, hub)
	limiter := router.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	go mailbox.Run(ctx, cfg.SweepInterval, func(res app.SweepResult) {
		collector.ActiveCalls(res.Active)
		for i := 0; i < res.Expired; i++ {
			collector.CallEnded("expired")
		}
		if n := limiter.Prune(); n > 0 {
			log.Debug().Int("users", n).Msg("pruned idle rate limiters")
		}
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Mailbox: mailbox,
		Hub:     hub,
		Auth:    router.NewAuthenticator(cfg.Secret),
		Limiter: limiter,
		Metrics: collector,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("peercall signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
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
