// Package main contains the entrypoint for the safenet service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/daejeonsafe/safenet/internal/app"
	"github.com/daejeonsafe/safenet/internal/config"
	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/enrich"
	"github.com/daejeonsafe/safenet/internal/geocode"
	"github.com/daejeonsafe/safenet/internal/logger"
	"github.com/daejeonsafe/safenet/internal/notify"
	"github.com/daejeonsafe/safenet/internal/poller"
	"github.com/daejeonsafe/safenet/internal/realtime"
	"github.com/daejeonsafe/safenet/internal/safe182"
	"github.com/daejeonsafe/safenet/internal/server"
	"github.com/daejeonsafe/safenet/internal/tasks"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires all components and blocks until shutdown, returning the
// process exit code.
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	registry := realtime.NewRegistry(log)

	registryClient := safe182.NewClient(cfg.Safe182, store, log)
	cache := safe182.NewCache(cfg.Safe182.MinInterval, cfg.Safe182.CacheDuration)

	enricher := enrich.NewEnricher(enrich.NewGateway(cfg.Enrich, store, log), log)

	paraphraser, err := enrich.NewParaphraser(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("failed to initialize language model client", "error", err)
		return 1
	}

	resolver := geocode.NewResolver(
		geocode.NewKakaoClient(cfg.Kakao.BaseURL, cfg.Kakao.APIKey, cfg.Kakao.Timeout),
		cfg.Kakao.MinQueryLen,
		log,
	)

	var dispatcher *notify.Dispatcher
	if cfg.Firebase.CredentialsFile != "" {
		sender, err := notify.NewFCMSender(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Error("failed to initialize push sender", "error", err)
			return 1
		}
		dispatcher = notify.NewDispatcher(sender, store, registry, log)
	} else {
		log.Warn("push delivery disabled, no firebase credentials configured")
	}

	ingest := poller.New(
		registryClient, cache, enricher, resolver, store, registry, dispatcherOrNil(dispatcher),
		poller.Sleeps{
			Fresh:   cfg.Safe182.FreshSleep,
			Gate:    cfg.Safe182.GateSleep,
			Backoff: cfg.Safe182.Backoff,
			Idle:    cfg.Safe182.IdleSleep,
		},
		log,
	)

	sched, err := app.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Registry: registry,
		Config:   cfg,
	}))
	if err != nil {
		log.Error("failed to create scheduler", "error", err)
		return 1
	}

	srv := server.New(store, cache, enricher, registry, dispatcherOrNilServer(dispatcher),
		translatorOrNil(paraphraser), ingest, log)

	application := app.New(log, cfg.Server.Addr, srv.Routes(), ingest, sched, cfg.Server.ShutdownTimeout)

	log.Info("starting safenet service", "addr", cfg.Server.Addr)
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("service stopped with error", "error", err)
		return 1
	}

	log.Info("service stopped gracefully")
	return 0
}

// dispatcherOrNil avoids storing a typed nil in the poller's interface
// field when push is not configured.
func dispatcherOrNil(d *notify.Dispatcher) poller.Notifier {
	if d == nil {
		return nil
	}
	return d
}

func dispatcherOrNilServer(d *notify.Dispatcher) server.Notifier {
	if d == nil {
		return nil
	}
	return d
}

// translatorOrNil avoids a typed-nil translator when the language model
// is not configured.
func translatorOrNil(p *enrich.Paraphraser) server.Translator {
	if p == nil {
		return nil
	}
	return p
}
