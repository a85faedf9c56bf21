package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/tinywideclouds/go-fcm-service/cmd/fcmctl/cli"
	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
)

func main() {
	level := slog.LevelWarn
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	env := &cli.Env{
		Out:    os.Stdout,
		Logger: logger,
		NewSender: func(ctx context.Context, settings fcm.Settings) (dispatch.Sender, error) {
			return fcm.NewDispatcher(ctx, settings, logger)
		},
	}
	if err := cli.RootCommand(env).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
