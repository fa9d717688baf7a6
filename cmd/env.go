package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/matheuskafuri/postview/internal/api"
	"github.com/matheuskafuri/postview/internal/config"
	"github.com/matheuskafuri/postview/internal/logging"
	"github.com/matheuskafuri/postview/internal/store"
)

// env is everything a command needs: config, logger, snapshot store and
// API client. close releases them in reverse order.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	kv     store.KV
	snaps  *store.Snapshots
	client *api.Client

	closers []io.Closer
}

// setup loads the config and opens the store. When toFile is set, logs go to
// the configured log file so they stay off the TUI's screen.
func setup(ctx context.Context, toFile bool) (*env, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagPageSize != 0 {
		if flagPageSize < 1 {
			return nil, fmt.Errorf("invalid --page-size %d: must be at least 1", flagPageSize)
		}
		cfg.Pagination.PageSize = flagPageSize
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if flagVerbose {
		level = slog.LevelDebug
	}
	format := logging.ParseFormat(cfg.Logging.Format)

	e := &env{cfg: cfg}
	if toFile {
		logger, closer, err := logging.OpenFile(cfg.LogPath(), format, level)
		if err != nil {
			return nil, err
		}
		e.logger = logger
		e.closers = append(e.closers, closer)
	} else {
		e.logger = logging.New(os.Stderr, format, level)
	}

	kv, err := store.Open(ctx, store.Options{
		Driver:    cfg.Storage.Driver,
		Path:      cfg.StoragePath(),
		RedisURL:  cfg.Storage.RedisURL,
		Namespace: cfg.Storage.Namespace,
	})
	if err != nil {
		e.close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	e.kv = kv
	e.closers = append(e.closers, kv)
	e.snaps = store.NewSnapshots(kv)

	e.client, err = api.New(api.Options{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.TimeoutDuration(),
		RetryAttempts: cfg.API.RetryAttempts,
		RetryDelay:    cfg.RetryDelayDuration(),
		RateLimit:     cfg.API.RateLimit,
		Logger:        e.logger,
	})
	if err != nil {
		e.close()
		return nil, err
	}

	e.logger.Debug("environment ready", "driver", cfg.Storage.Driver, "base_url", cfg.API.BaseURL)
	return e, nil
}

func (e *env) close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// online fails fast for commands that need the network under --offline.
func online(name string) error {
	if flagOffline {
		return fmt.Errorf("%s needs the network; drop --offline", name)
	}
	return nil
}
