// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Flightlined is the flight reservation server. It serves the framed
// TCP protocol on the configured listen address and keeps all state in
// memory for the lifetime of the process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flightline-io/flightline/booking"
	"github.com/flightline-io/flightline/lib/config"
	"github.com/flightline-io/flightline/lib/version"
	"github.com/flightline-io/flightline/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var listen string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "path to config file (default: $FLIGHTLINE_CONFIG)")
	flag.StringVar(&listen, "listen", "", "listen address, overrides the config file")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("flightlined %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting flightlined",
		"version", version.Info(),
		"listen", cfg.Listen,
		"workers", cfg.Workers,
		"queue_depth", cfg.QueueDepth,
	)

	engine := booking.NewEngine(booking.Config{Logger: logger})
	if cfg.Admin.Username != "" {
		if _, err := engine.RegisterAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
			return fmt.Errorf("creating bootstrap admin: %w", err)
		}
	}

	srv, err := server.New(server.Config{
		Listen:     cfg.Listen,
		Engine:     engine,
		Workers:    cfg.Workers,
		QueueDepth: cfg.QueueDepth,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}

// loadConfig resolves the configuration: an explicit --config path
// wins; otherwise FLIGHTLINE_CONFIG is consulted; with neither, the
// built-in defaults run (a server with no admin account).
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if os.Getenv("FLIGHTLINE_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
