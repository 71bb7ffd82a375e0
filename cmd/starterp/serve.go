package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/spf13/cobra"

	"github.com/lborres/starterp"
	fiberadapter "github.com/lborres/starterp/adapters/fiber"
	"github.com/lborres/starterp/internal/config"
	"github.com/lborres/starterp/internal/metrics"
	"github.com/lborres/starterp/internal/telemetry"
)

const (
	cleanupInterval = time.Hour
	shutdownTimeout = 10 * time.Second
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func accessLogFormat() string {
	format := []string{
		"${time}|${status}|${latency}",
		"${ip}",
		"${bytesReceived}|${bytesSent}",
		"${method}|${path}",
		"${error}",
	}
	return strings.Join(format, "|") + "\n"
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "starterp",
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Warn("tracing not started", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	app := fiber.New(fiber.Config{AppName: "starterp"})
	app.Use(logger.New(logger.Config{
		Format:     accessLogFormat(),
		TimeFormat: "2006/01/02 15:04:05",
		TimeZone:   "Local",
	}))

	m := metrics.New()
	s, err := starterp.New(starterConfig(cfg, store, m, app, log))
	if err != nil {
		return fmt.Errorf("could not create starterp instance: %w", err)
	}

	go cleanupSessions(ctx, s, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	log.Info("listening", "port", cfg.Port, "storage", storageName(cfg))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func starterConfig(cfg config.Config, store *storage, m *metrics.Metrics, app *fiber.App, log *slog.Logger) starterp.Config {
	sc := starterp.Config{
		Secret:     cfg.Auth.Secret,
		Database:   store.auth,
		AppStorage: store.app,
		HTTP: fiberadapter.New(app, fiberadapter.Options{
			TrustedOrigins: cfg.Auth.TrustedOrigins,
			RateLimit: fiberadapter.RateLimitConfig{
				PerMinute: cfg.RateLimit.PerMinute,
				Burst:     cfg.RateLimit.Burst,
			},
			SecureCookies: cfg.Auth.SecureCookies,
			Metrics:       m,
			Logger:        log,
		}),
		BaseURL:  cfg.Auth.BaseURL,
		Bearer:   starterp.BearerMode(cfg.Auth.Bearer),
		Observer: m.ObserveOutcome,
		Logger:   log,
	}
	if cfg.GoogleEnabled() {
		sc.Google = &starterp.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
		}
	}
	return sc
}

// cleanupSessions deletes expired sessions until ctx is done.
func cleanupSessions(ctx context.Context, s *starterp.Starter, log *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sessions.Cleanup(ctx)
			if err != nil {
				log.Warn("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired sessions removed", "count", n)
			}
		}
	}
}

func storageName(cfg config.Config) string {
	if cfg.InMemory {
		return "memory"
	}
	return "postgres"
}
