package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/linzo/meet/internal/adapters/http"
	signalws "github.com/linzo/meet/internal/adapters/signal"
	"github.com/linzo/meet/internal/app"
	"github.com/linzo/meet/internal/config"
	"github.com/linzo/meet/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	sink := buildSink(cfg)
	defer func() {
		if err := sink.Close(); err != nil {
			log.Error().Err(err).Msg("sink close")
		}
	}()

	orch := &app.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewRoomManager(),
		Policy:   app.SimplePolicy{},
		Sink:     sink,
	}

	ctrl := signalws.NewController(orch, cfg.TranscriptLimit, cfg.TranscriptWindow)
	ctrl.ReadLimit = cfg.ReadLimit
	ctrl.PingPeriod = cfg.PingPeriod
	r := router.SetupRouter(ctx, cfg, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("meet server started")
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

// buildSink wires the optional transcript persistence observer.
func buildSink(cfg *config.Config) app.TranscriptSink {
	if cfg.RedisAddr == "" {
		return app.NopSink{}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, transcripts will not be recorded")
		_ = rdb.Close()
		return app.NopSink{}
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("transcript sink: redis")
	return app.NewRedisSink(rdb, "meet", cfg.TranscriptTTL)
}
