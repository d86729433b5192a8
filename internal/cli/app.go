// Package cli implements the mytodo command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"mytodo/internal/config"
	"mytodo/internal/logger"
	"mytodo/internal/persistence"
	"mytodo/internal/store"
	"mytodo/internal/todo"
)

// app is the wired task store for one process run.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   store.Store
	adapter *persistence.Adapter
	tasks   *todo.Store
}

// openApp loads configuration, opens the slot store and loads the task
// collection once. Saves are wired only after the load has completed.
func openApp(ctx context.Context, configFile string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.Log.Level, logOut)

	if cfg.Storage.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	adapter := persistence.New(st, cfg.Storage.Key, log)
	loaded, err := adapter.Load(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	tasks := todo.New(todo.WithObserver(adapter.Observer()))
	if err := tasks.Load(loaded); err != nil {
		st.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"path":  cfg.Storage.Path,
		"tasks": len(loaded),
	}).Debug("task store ready")

	return &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		adapter: adapter,
		tasks:   tasks,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
