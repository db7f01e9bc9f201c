// Package main wires together the market-intelligence service binary.
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

	"go.uber.org/zap"

	"github.com/zrouga/CoAI-app/internal/api"
	"github.com/zrouga/CoAI-app/internal/config"
	"github.com/zrouga/CoAI-app/internal/intel"
	"github.com/zrouga/CoAI-app/internal/logbuf"
	"github.com/zrouga/CoAI-app/internal/logging"
	"github.com/zrouga/CoAI-app/internal/pipeline"
	"github.com/zrouga/CoAI-app/internal/progress"
	"github.com/zrouga/CoAI-app/internal/retry"
	"github.com/zrouga/CoAI-app/internal/scrape/apify"
	"github.com/zrouga/CoAI-app/internal/scrape/traffic"
	memoryStorage "github.com/zrouga/CoAI-app/internal/storage/memory"
	"github.com/zrouga/CoAI-app/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, "marketintel")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store intel.Store
	if cfg.DB.DSN != "" {
		pgStore, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer pgStore.Close()
		store = pgStore
		logger.Info("using postgres store")
	} else {
		store = memoryStorage.New()
		logger.Warn("db.dsn not set, using in-memory store")
	}

	retryCfg := retry.Config{
		MaxRetries:   cfg.Pipeline.RetryMaxAttempts,
		InitialDelay: cfg.Pipeline.RetryInitialDelay(),
		MaxDelay:     cfg.Pipeline.RetryMaxBackoff(),
	}
	scraper := apify.New(apify.Config{
		Token:        cfg.Apify.Token,
		ActorID:      cfg.Apify.ActorID,
		CountryCode:  cfg.Apify.CountryCode,
		PollInterval: cfg.Apify.PollInterval(),
		Retry:        retryCfg,
	}, store, nil, logger.Named("apify"))
	trafficClient := traffic.New(traffic.Config{
		APIKey: cfg.Traffic.ScraperAPIKey,
		Retry:  retryCfg,
	}, nil, logger.Named("traffic"))

	broker := progress.NewBroker(logger.Named("broker"))
	logs := logbuf.New()
	registry := pipeline.NewRegistry()
	svc := pipeline.NewService(store, scraper, trafficClient, registry, broker, logs, logger.Named("pipeline"))

	apiServer := api.NewServer(svc, store, broker, logs, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownGrace)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
