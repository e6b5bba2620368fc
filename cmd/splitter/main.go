package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nivanenko/shared-expenses-tracker/internal/backend"
	"github.com/nivanenko/shared-expenses-tracker/internal/cli"
	"github.com/nivanenko/shared-expenses-tracker/internal/config"
	"github.com/nivanenko/shared-expenses-tracker/internal/log"
)

func main() {
	cli.LoadEnvFile()

	// stdout carries command output, so logs go to stderr
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), log.ComponentCLI, os.Stderr)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Fatal(ctx, "Invalid backend configuration", "error", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize backend", "error", err)
	}

	a := &app{svc: res.Service, in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	status := a.run(ctx, os.Args[1:], true)

	if err := res.Cleanup(); err != nil {
		logger.Error("Cleanup failed", "error", err)
	}
	stop()
	os.Exit(int(status))
}
