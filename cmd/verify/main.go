// Command verify checks a recording against the stream catalog and prints a report.
//
// Exit codes: 0 when every expected stream was found and verified, 1 when the
// verdict failed, 2 when the recording or the catalog could not be loaded.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/streamcheck/internal/buildinfo"
	"github.com/and161185/streamcheck/internal/catalog"
	"github.com/and161185/streamcheck/internal/config"
	"github.com/and161185/streamcheck/internal/recording"
	"github.com/and161185/streamcheck/internal/report"
	"github.com/and161185/streamcheck/internal/verifier"
	"github.com/and161185/streamcheck/storage/postgres"
)

const (
	exitPass    = 0
	exitFail    = 1
	exitLoadErr = 2
)

var errNoRecording = errors.New("no recording given: pass a file path or -d")

func main() {
	os.Exit(run())
}

func run() int {
	buildinfo.PrintBuildInfo(os.Stderr, "streamcheck verify")

	cfg := config.NewVerifierConfig()
	defer func() { _ = cfg.Logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return verify(ctx, cfg, os.Stdout)
}

func verify(ctx context.Context, cfg *config.VerifierConfig, out io.Writer) int {
	logger := cfg.Logger

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Errorw("catalog_invalid", "path", cfg.CatalogPath, "error", err)
		return exitLoadErr
	}

	loader, path, closeFn, err := openLoader(ctx, cfg)
	if err != nil {
		logger.Errorw("recording_unavailable", "path", path, "error", err)
		return exitLoadErr
	}
	defer closeFn()

	policy := verifier.Policy{
		RateTolerance:       cfg.RateTolerance,
		RegularityThreshold: cfg.RegularityThreshold,
		FailOnAdvisory:      cfg.Strict,
	}
	r, err := verifier.New(cat, policy, logger).Run(ctx, loader, path)
	if err != nil {
		logger.Errorw("recording_load_failed", "path", path, "error", err)
		return exitLoadErr
	}

	if cfg.Format == config.FormatJSON {
		err = report.WriteJSON(out, r)
	} else {
		err = report.WriteText(out, r)
	}
	if err != nil {
		logger.Errorw("report_write_failed", "error", err)
	}

	if !r.Success {
		return exitFail
	}
	return exitPass
}

func loadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		cat := catalog.Default()
		return cat, cat.Validate()
	}
	return catalog.Load(path)
}

// openLoader picks the recorder database when a DSN is set and the recording file otherwise.
func openLoader(ctx context.Context, cfg *config.VerifierConfig) (recording.Loader, string, func(), error) {
	if cfg.DatabaseDsn != "" {
		const label = "postgres"
		store, err := postgres.NewPostgresStorage(ctx, cfg.DatabaseDsn)
		if err != nil {
			return nil, label, nil, err
		}
		return recording.DatabaseLoader{Source: store}, label, func() { _ = store.Close() }, nil
	}
	if cfg.RecordingPath == "" {
		return nil, "", nil, errNoRecording
	}
	loader, err := recording.Open(cfg.RecordingPath)
	if err != nil {
		return nil, cfg.RecordingPath, nil, fmt.Errorf("open recording: %w", err)
	}
	return loader, cfg.RecordingPath, func() {}, nil
}
