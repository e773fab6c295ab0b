// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the server lifecycle of dmaic serve.
package daemon

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Task is a background subsystem that runs until ctx is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// App runs background tasks next to the Manager's servers.
type App struct {
	logger  zerolog.Logger
	manager Manager
	tasks   []Task
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, tasks ...Task) *App {
	return &App{logger: logger, manager: manager, tasks: tasks}
}

// Run starts all tasks and the manager, and blocks until ctx is cancelled or
// the manager fails. Task failures are logged and do not stop the servers.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, task := range a.tasks {
		g.Go(func() error {
			if err := task.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().
					Err(err).
					Str("event", "task.failed").
					Str("task", task.Name).
					Msg("background task failed")
			}
			return nil
		})
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}
