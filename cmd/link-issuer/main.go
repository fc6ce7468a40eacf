package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/DeliveryReport/config"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{httpAddr: cfg.Server.WorkerHTTPAddr, cfg: cfg})
		if err != nil && ctx.Err() == nil {
			slog.Error("worker http server stopped", "err", err)
		}
	}()

	if err := RunLinkIssuer(ctx, cfg, defaultIssuerFactories()); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
