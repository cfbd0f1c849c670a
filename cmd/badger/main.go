package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/youruser/badgeapp/internal/app"
	"github.com/youruser/badgeapp/internal/config"
	"github.com/youruser/badgeapp/internal/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	dir := flag.String("dir", cfg.Paths.SourceDir, "directory with source photos")
	loop := flag.Bool("loop", false, "rerun the directory every BADGE_INTERVAL_SECONDS")
	watch := flag.Bool("watch", false, "process photos as they are dropped into the directory")
	workers := flag.Int("workers", cfg.Batch.Workers, "parallel images")
	preview := flag.Bool("test", false, "draw the template semi-transparent to check avatar placement")
	flag.Parse()

	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *preview {
		cfg.Badge.PreviewAlpha = 125
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	container, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := container.Runner
	switch {
	case *watch:
		if err := runner.Watch(ctx, *dir, cfg.Batch.Debounce); err != nil {
			logger.Fatal("Watch failed", zap.Error(err))
		}
	case *loop:
		if err := runner.Loop(ctx, *dir, cfg.Batch.Interval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal("Loop failed", zap.Error(err))
		}
	default:
		sum, err := runner.Run(ctx, *dir)
		if err != nil {
			logger.Fatal("Batch failed", zap.String("dir", *dir), zap.Error(err))
		}
		if sum.Failed > 0 {
			_ = logger.Sync()
			os.Exit(2)
		}
	}
}
