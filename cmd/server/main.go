// Package main is the entry point for the gridsight-ai detection server.
//
// Responsibilities:
//   - Load and validate configuration from YAML file and environment
//   - Open the signal database and run schema migrations
//   - Load the knowledge base and start the file watcher
//   - Wire the detection service, model handle and diagnosis coordinator
//   - Serve the REST API, Prometheus metrics and the WebSocket event feed
//   - Implement graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridsight/gridsight-ai/internal/config"
	"github.com/gridsight/gridsight-ai/internal/logging"
	"github.com/gridsight/gridsight-ai/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gridsight-ai: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	mgr, err := config.NewManager(configPath)
	if err != nil {
		return fmt.Errorf("create config manager: %w", err)
	}
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := mgr.Validate(ctx); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := mgr.Get(ctx)

	logger, err := logging.NewLogger(&logging.Config{
		AuditLogPath: cfg.Logging.AuditPath,
		AppLogPath:   cfg.Logging.AppPath,
		MaxSize:      cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAge:       cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		LogLevel:     cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}
