package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"locked-study/server/internal/app"
	"locked-study/server/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := telemetry.WrapLogger(log.Default())
	cfg := app.ApplyEnv(app.DefaultConfig(), nil, logger)
	cfg.Logger = logger

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
