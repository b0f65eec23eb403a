// Package main contains the entrypoint for the HostPilot service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maelis/hostpilot/internal/ai"
	"github.com/maelis/hostpilot/internal/app"
	"github.com/maelis/hostpilot/internal/autopilot"
	"github.com/maelis/hostpilot/internal/config"
	"github.com/maelis/hostpilot/internal/logger"
	"github.com/maelis/hostpilot/internal/poller"
	"github.com/maelis/hostpilot/internal/server"
	"github.com/maelis/hostpilot/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components (config, logger, store, generator,
// pipeline, server, scheduler), handles graceful shutdown, and returns an
// exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	st, cleanup, err := newStore(cfg, log)
	if err != nil {
		log.Error("Failed to initialize store", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer cleanup()

	generator, err := newGenerator(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize AI generator", "error", err)
		return 1
	}

	replyCfg := ai.Config{
		Language:          cfg.AI.Language,
		Tone:              cfg.AI.Tone,
		IncludeEmoji:      cfg.AI.IncludeEmoji,
		MaxResponseLength: cfg.AI.MaxResponseLength,
	}
	controller := autopilot.New(st, generator, replyCfg, cfg.AI.Timeout, log)
	watcher := poller.New(st, cfg.Poll.Interval, log)
	srv := server.New(st, controller, watcher, cfg.AutoPilot.DefaultEnabled, log)

	scheduler, err := app.NewScheduler(log, &cfg.Scheduler, app.RegisterAllTasks(app.TaskDeps{
		Logger: log,
		Store:  st,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	application := app.New(log, cfg.Server.Listen, srv.Handler(), scheduler, cfg.Server.ShutdownTimeout)

	log.Info("Starting HostPilot...")
	runErr := application.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Service stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Service stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// newStore picks SQLite or the read-only demo store based on whether a
// database path is configured.
func newStore(cfg *config.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.Database.Path == "" {
		return store.NewMockStore(log), func() {}, nil
	}

	db, err := store.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return store.NewStore(db, log), func() { store.CloseDB(db) }, nil
}

// newGenerator picks the Gemini backend or the canned demo generator
// based on whether an API key is configured.
func newGenerator(ctx context.Context, cfg *config.Config, log *slog.Logger) (ai.Generator, error) {
	if cfg.AI.APIKey == "" {
		return ai.NewMockGenerator(log), nil
	}
	return ai.NewGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model, log)
}
