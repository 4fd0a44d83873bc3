// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// vellum-server runs the collaboration kernel: user accounts and
// sessions, versioned data bases, and collaborative editing domains
// over a file-backed store. Transport layers attach through the
// server package's Go API; this binary owns configuration, logging,
// and lifecycle.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vellum-project/vellum/lib/config"
	"github.com/vellum-project/vellum/lib/secret"
	"github.com/vellum-project/vellum/server"
	"github.com/vellum-project/vellum/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var dataDir string
	var adminSecretPath string
	var logLevel string

	flagSet := pflag.NewFlagSet("vellum-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&dataDir, "data-dir", "", "override the configured data directory")
	flagSet.StringVar(&adminSecretPath, "admin-secret", "", "override the configured admin secret file (\"-\" reads stdin)")
	flagSet.StringVar(&logLevel, "log-level", "", "override the configured log level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if adminSecretPath != "" {
		cfg.AdminSecretFile = adminSecretPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := newLogger(cfg.LogLevel)

	adminSecret, err := readAdminSecret(cfg.AdminSecretFile)
	if err != nil {
		return err
	}
	defer secret.Zero(adminSecret)

	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return err
	}

	host, err := server.NewHost(server.Options{
		Store:       store,
		Logger:      logger,
		SessionTTL:  cfg.SessionTTL,
		AdminSecret: adminSecret,
	})
	if err != nil {
		return err
	}
	defer host.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := host.Open(ctx); err != nil {
		return err
	}
	logger.Info("vellum-server running", "data_dir", cfg.DataDir)

	<-ctx.Done()
	logger.Info("signal received, shutting down")
	return host.Close(context.Background())
}

// readAdminSecret resolves the first-boot admin secret: from the
// configured file, or interactively when running on a terminal with
// no file configured.
func readAdminSecret(path string) ([]byte, error) {
	if path != "" {
		return secret.ReadFromPath(path)
	}
	return secret.Prompt("admin secret")
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}
