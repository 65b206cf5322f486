package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/allegro-rest/internal/app"
	"github.com/florianilch/allegro-rest/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version, commit string) error {
	cmd := &cli.Command{
		Name:    "allegro",
		Usage:   "Allegro REST API client",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the TOML config file",
				Value: app.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel|otlp)",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "environment",
				Usage: "API environment (production|sandbox)",
				Value: "production",
			},
		},
		Commands: []*cli.Command{
			authCommand(),
			getCommand(),
			deleteCommand(),
			putCommand(),
			postCommand(),
			uploadCommand(),
			commandCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// flagOverrides maps explicitly set flags onto config keys so that they win
// over the config file and the environment.
var flagOverrides = map[string]string{
	"environment": "environment",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// setup loads the config and installs logging. The returned shutdown flushes
// buffered log exporters and must be called before the command returns.
func setup(ctx context.Context, cmd *cli.Command, extra map[string]any) (*app.Config, observability.ShutdownFunc, error) {
	overrides := map[string]any{}
	for flag, key := range flagOverrides {
		if cmd.IsSet(flag) {
			overrides[key] = cmd.String(flag)
		}
	}
	for key, value := range extra {
		overrides[key] = value
	}

	cfg, err := app.LoadConfig(cmd.String("config"), overrides, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, nil, err
	}

	shutdown, err := observability.Instrument(ctx, level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	return cfg, shutdown, nil
}

// withApp runs fn against an App built from the loaded config.
func withApp(ctx context.Context, cmd *cli.Command, extra map[string]any, fn func(context.Context, *app.App) error) (err error) {
	cfg, shutdown, err := setup(ctx, cmd, extra)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			err = errors.Join(err, fmt.Errorf("observability shutdown failed: %w", shutdownErr))
		}
	}()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	return fn(ctx, application)
}
