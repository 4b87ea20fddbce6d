package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GrishaDaradjanovv/Dani/internal/cli"
	"github.com/GrishaDaradjanovv/Dani/internal/config"
	"github.com/GrishaDaradjanovv/Dani/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, logCfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, logCfg.Level, logCfg.Format)
	slog.SetDefault(log)

	app, err := cli.NewApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}()

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
