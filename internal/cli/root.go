// Package cli implements the biliview CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/biliview/biliview/internal/cache"
	"github.com/biliview/biliview/internal/config"
	"github.com/biliview/biliview/internal/history"
	"github.com/biliview/biliview/internal/imagecache"
	"github.com/biliview/biliview/internal/log"
	"github.com/biliview/biliview/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var cacheDirFlag string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "biliview",
	Short: "Local cache toolkit for the biliview search client",
	Long: "biliview manages the client-side cache: durable TTL/LRU key-value " +
		"collections, image blobs, video snapshot sheets and search history.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cacheDirFlag, "cache-dir", "c", "", "Cache directory (default: ~/.local/share/biliview)")
}

// app bundles the services every command needs.
type app struct {
	cfg     *config.Config
	store   *store.Store
	cache   *cache.Service
	images  *imagecache.Cache
	history *history.Service
	logger  *slog.Logger
}

// openApp loads config, sets up logging and opens the shared store. The
// caller must Close.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cacheDirFlag != "" {
		cfg.CacheDir = cacheDirFlag
	}

	logger, err := log.Setup(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	st, err := store.Open(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	svc := cache.NewService(st, logger)
	svc.SetLimits(cfg.Cache.MaxImageEntries, cfg.Cache.MaxDataEntries)

	var limiter *rate.Limiter
	if cfg.Image.FetchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Image.FetchRate), cfg.Image.FetchBurst)
	}

	return &app{
		cfg:     cfg,
		store:   st,
		cache:   svc,
		images:  imagecache.NewCache(svc, limiter, logger),
		history: history.NewService(svc, logger),
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	a.images.RevokeAll()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
