// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultkeeper/internal/api"
	"github.com/starford/vaultkeeper/internal/mcpserver"
	"github.com/starford/vaultkeeper/internal/noteservice"
	"github.com/starford/vaultkeeper/internal/sse"
	"github.com/starford/vaultkeeper/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts...)

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Structured JSON logs go to stderr; stdout belongs to the stdio transport.
	logger := slog.New(slog.NewJSONHandler(app.stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("transport", cfg.App.Transport),
		slog.String("vault_root", cfg.Vault.Root),
		slog.Bool("strict_symlinks", cfg.Vault.StrictSymlinks),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if cfg.Vault.CreateRoot {
		if err := os.MkdirAll(cfg.Vault.Root, 0o755); err != nil {
			return fmt.Errorf("create vault dir: %w", err)
		}
	}

	store, err := storage.NewFS(cfg.Vault.Root, storage.WithStrictSymlinks(cfg.Vault.StrictSymlinks))
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	logger.Info("Vault ready", slog.String("root", store.Root()))

	switch cfg.App.Transport {
	case TransportHTTP:
		return runHTTP(ctx, cfg, store, logger)
	default:
		return runStdio(ctx, app, store, logger)
	}
}

func runStdio(ctx context.Context, app *application, store *storage.FS, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := noteservice.NewService(store, noteservice.WithLogger(logger))
	srv := mcpserver.New(svc, logger)

	logger.Info("Serving MCP over stdio")
	err := srv.ServeStdio(ctx, app.stdin, app.stdout)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("Server stopped successfully")
	return nil
}

func runHTTP(ctx context.Context, cfg *Config, store *storage.FS, logger *slog.Logger) error {
	// SSE broker fed by vault mutations.
	broker := sse.NewBroker(sse.WithLogger(logger))
	defer broker.Close()

	svc := noteservice.NewService(store,
		noteservice.WithLogger(logger),
		noteservice.WithEventCallback(broker.PublishVaultEvent))
	srv := mcpserver.New(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	api.MountHealth(r, func() error {
		_, err := os.Stat(store.Root())
		return err
	})

	r.Mount("/", api.NewRouter(srv.HTTPHandler(), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server",
			slog.String("address", cfg.App.HTTP.Address()),
			slog.String("mcp_path", api.MCPPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Release SSE streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
