package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/allegro-rest/cmd/allegro/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Context cancellation on SIGINT/SIGTERM aborts in-flight requests and the login flow.
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := commands.Execute(ctx, os.Args, version, commit); err != nil {
		slog.ErrorContext(ctx, "command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
