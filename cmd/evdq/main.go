package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/joeording3/evdq/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	port := flag.Int("port", 0, "override server port (optional)")
	pollSeconds := flag.Int("poll", 0, "refresh interval in seconds (optional)")
	logPath := flag.String("log", "", "write logs to this file (optional; the terminal belongs to the UI)")
	flag.Parse()

	logger, closeLog, err := setupLogger(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evdq: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		ServerPort: *port,
		Logger:     logger,
	}
	if *pollSeconds > 0 {
		opts.PollEvery = time.Duration(*pollSeconds) * time.Second
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "evdq: %v\n", err)
		return 1
	}
	return 0
}

func setupLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := tint.NewHandler(file, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	})
	return slog.New(handler), func() { _ = file.Close() }, nil
}
