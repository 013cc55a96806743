package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/markis/gh-chartstream/internal/args"
	"github.com/markis/gh-chartstream/internal/config"
	applog "github.com/markis/gh-chartstream/internal/log"
)

// main function to parse arguments and run the selected command.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(ctx, os.Getenv(config.EnvConfig))
	if err != nil {
		exit(err)
	}

	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	defer applog.Close()

	a, err := args.ParseArgs(ctx, *cfg, os.Args[1:])
	if err != nil {
		exit(err)
	}
	if err := run(ctx, cfg, a); err != nil {
		applog.Close()
		exit(err)
	}
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
