package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultkeeper/internal"
	pkgconfig "github.com/starford/vaultkeeper/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()

	// The config file is optional: MCP hosts usually launch the binary
	// with only flags or environment variables.
	if err := pkgconfig.Load(configPath, cfg,
		pkgconfig.WithEnvPrefix(internal.EnvPrefix),
		pkgconfig.AllowMissing(),
	); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// Flags win over file and environment.
	if vault := cmd.String("vault"); vault != "" {
		cfg.Vault.Root = vault
	}
	if transport := cmd.String("transport"); transport != "" {
		cfg.App.Transport = transport
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "vaultkeeper",
		Usage:  "MCP server for creating, moving and linking notes inside a sandboxed vault",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "vault",
				Usage: "Vault root directory (overrides the config file)",
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Transport to serve: stdio or http",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
