// Command recorder is the reference recorder: it accepts outlets and samples
// over HTTP, and optionally NATS, and keeps them in memory or PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/and161185/streamcheck/internal/buildinfo"
	"github.com/and161185/streamcheck/internal/config"
	"github.com/and161185/streamcheck/internal/recorder"
	"github.com/and161185/streamcheck/internal/recorder/middleware"
	"github.com/and161185/streamcheck/internal/transport"
	"github.com/and161185/streamcheck/storage"
	"github.com/and161185/streamcheck/storage/inmemory"
	"github.com/and161185/streamcheck/storage/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	buildinfo.PrintBuildInfo(os.Stdout, "streamcheck recorder")

	cfg := config.NewRecorderConfig()
	logger := cfg.Logger
	defer func() { _ = logger.Sync() }()

	if _, err := middleware.ParseSubnet(cfg.TrustedSubnet); err != nil {
		logger.Errorw("config_invalid", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStorage, err := openStorage(ctx, cfg, time.Now())
	if err != nil {
		logger.Errorw("storage_unavailable", "error", err)
		return 1
	}
	defer closeStorage()

	rec := recorder.New(st, cfg)

	if cfg.NatsURL != "" {
		nc, err := transport.DialNATS(cfg.NatsURL, "streamcheck-recorder")
		if err != nil {
			logger.Errorw("nats_unavailable", "url", cfg.NatsURL, "error", err)
			return 1
		}
		defer func() { _ = nc.Drain() }()
		if _, err := rec.SubscribeNATS(ctx, nc); err != nil {
			logger.Errorw("nats_subscribe_failed", "error", err)
			return 1
		}
	}

	logger.Infow("recorder_config",
		"addr", cfg.Addr,
		"store_interval_s", cfg.StoreInterval,
		"recording", cfg.RecordingPath,
		"database", cfg.DatabaseDsn != "",
		"nats", cfg.NatsURL,
		"hash", cfg.Key != "",
		"trusted_subnet", cfg.TrustedSubnet,
	)

	if err := rec.Run(ctx); err != nil {
		logger.Errorw("recorder_failed", "error", err)
		return 1
	}
	return 0
}

// openStorage uses PostgreSQL when a DSN is configured and memory otherwise.
func openStorage(ctx context.Context, cfg *config.RecorderConfig, now time.Time) (storage.Storage, func(), error) {
	session := recorder.NewSession(now)

	if cfg.DatabaseDsn != "" {
		store, err := postgres.NewPostgresStorage(ctx, cfg.DatabaseDsn)
		if err != nil {
			return nil, nil, err
		}
		if err := store.StartSession(ctx, session.SessionID, now); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}

	store := inmemory.NewMemStorage(session)
	if cfg.Restore && cfg.RecordingPath != "" {
		if err := store.LoadFromFile(ctx, cfg.RecordingPath); err != nil {
			cfg.Logger.Warnw("restore_failed", "path", cfg.RecordingPath, "error", err)
		}
	}
	return store, func() {}, nil
}
