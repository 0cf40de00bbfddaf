// Package main wires together the notice harvester binary.
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

	"github.com/campushub/notice-harvester/internal/api"
	"github.com/campushub/notice-harvester/internal/config"
	"github.com/campushub/notice-harvester/internal/logging"
	"github.com/campushub/notice-harvester/internal/metrics"
	"github.com/campushub/notice-harvester/internal/pipeline"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	discoverOnly := flag.Bool("discover-only", false, "Run discovery and exit without harvesting")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		// Sync flushes buffered entries; stdout sync errors are expected on
		// some platforms and safe to ignore.
		_ = logger.Sync()
	}()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *discoverOnly); err != nil {
		logger.Error("harvester exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, discoverOnly bool) error {
	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	var srv *http.Server
	if cfg.Server.Enabled {
		insts, subs, notices := p.Stores()
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(insts, subs, notices, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", zap.Error(err))
			}
		}()
	}

	var runErr error
	if discoverOnly {
		runErr = p.RunDiscovery(ctx)
	} else {
		_, runErr = p.RunCycle(ctx)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", zap.Error(err))
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
