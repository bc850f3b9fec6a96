package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Berobasket/gdx-pay/internal/infrastructure/config"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/logging"
	"github.com/Berobasket/gdx-pay/internal/interfaces/cli"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(&cfg.Sentry); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(cli.Options{
		Version:    version,
		LoadConfig: func() (*config.Config, error) { return cfg, nil },
		Logger:     logging.WithComponent("billingctl"),
	})

	err = root.ExecuteContext(ctx)
	logging.Sync()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
