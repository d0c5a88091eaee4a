package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/mako-go/pkg/client"
	"github.com/Sternrassler/mako-go/pkg/config"
	"github.com/Sternrassler/mako-go/pkg/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("MAKO_CONFIG"), "path to the YAML config file")
	addr := flag.String("addr", getEnv("MAKO_ADDR", ":8080"), "listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LoggingConfig())
	logger := logging.NewLogger("mako-server")

	cc := cfg.ClientConfig()
	if cc.Redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := cc.Redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		defer cc.Redis.Close()
	}

	c, err := client.New(cc)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create client")
	}
	defer c.Close()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newServer(c, cc.Redis, cfg.CollectConfig()).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("addr", *addr).
			Str("user_agent", cc.UserAgent).
			Msg("Starting mako server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	// Running enumerations stop at their next page boundary.
	c.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
