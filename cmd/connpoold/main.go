// Command connpoold runs the connection pool manager as a standalone,
// introspectable service: a demo harness around package pool exposing
// health endpoints, a live snapshot of every destination's queue state,
// and Prometheus metrics. Wiring mirrors the teacher's main.go: config →
// logger → subsystems → HTTP server → graceful shutdown on signal.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfreddev/connpool/config"
	"github.com/alfreddev/connpool/connector"
	"github.com/alfreddev/connpool/logger"
	"github.com/alfreddev/connpool/pool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg)
	cfg.Pool.Logger = log

	log.Info().Str("env", cfg.Env).Msg("connpoold starting")

	registry := prometheus.NewRegistry()

	conn := connector.New(connector.Options{
		DialTimeout:         cfg.DialTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		KeepAlive:           cfg.KeepAliveInterval,
		Logger:              log,
	})

	manager, err := pool.NewConnectionManager(cfg.Pool, conn, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid pool configuration")
	}
	defer manager.Close()

	if cfg.RedisURL != "" {
		publisher, err := newSnapshotPublisher(cfg.RedisURL, manager, log, cfg.PollInterval)
		if err != nil {
			log.Warn().Err(err).Msg("redis snapshot publisher init failed — continuing without it")
		} else {
			publisher.Start()
			defer publisher.Stop()
		}
	}

	router := newRouter(manager, registry, log)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
