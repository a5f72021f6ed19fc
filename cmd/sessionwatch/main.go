package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/coaching-scheduler/internal/cli"
	"github.com/example/coaching-scheduler/internal/config"
	"github.com/example/coaching-scheduler/internal/logging"
	"github.com/example/coaching-scheduler/internal/storeclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "sessionwatch:", cli.UserMessage(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if _, err := config.LoadEnvFile(os.Getenv("SESSIONWATCH_ENV_FILE")); err != nil {
		return err
	}
	cfg, err := config.LoadWatcher()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps := &cli.Dependencies{
		Config: cfg,
		Store:  storeclient.New(cfg.StoreURL),
		Logger: logging.New(os.Stderr, cfg.LogLevel),
	}
	if cfg.AssignerKey != "" {
		deps.Assigner = storeclient.NewAssigner(cfg.StoreURL, cfg.AssignerKey)
	}

	root := cli.NewRootCmd(deps)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
