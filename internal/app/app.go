// Package app wires the evdq components together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeording3/evdq/internal/config"
	"github.com/joeording3/evdq/internal/evd"
	"github.com/joeording3/evdq/internal/history"
	"github.com/joeording3/evdq/internal/queue"
	"github.com/joeording3/evdq/internal/ui"
)

// Options configure the evdq application.
type Options struct {
	ConfigPath string
	ServerPort int           // overrides the configured port when > 0
	PollEvery  time.Duration // zero uses the configured interval
	Logger     *slog.Logger
}

// Run boots the evdq TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	port := cfg.ServerPort
	if opts.ServerPort > 0 {
		port = opts.ServerPort
	}
	interval := cfg.PollInterval
	if opts.PollEvery > 0 {
		interval = opts.PollEvery
	}

	client := evd.NewClient(port)

	store, err := history.Open(cfg.HistoryDB, client, log)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	manager := queue.NewManager(client, log)
	defer manager.Destroy()

	// Keep the cache warm independently of UI ticks.
	manager.StartPeriodicUpdates(interval)

	log.Info("evdq starting", "port", port, "poll", interval.String())

	return ui.Run(ui.Options{
		Context:  ctx,
		Manager:  manager,
		History:  store,
		PollTick: interval,
	})
}
