package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/starterp"
	"github.com/lborres/starterp/adapters/memory"
	"github.com/lborres/starterp/internal/config"
	"github.com/lborres/starterp/internal/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryStorage() *storage {
	db := memory.New()
	return &storage{auth: db, app: db, close: func() {}}
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := rootCmd()

	for _, name := range []string{"serve", "migrate", "create-admin"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag missing")
	}
}

func TestServe_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("AUTH_SECRET", "short")
	t.Setenv("USE_IN_MEMORY_STORAGE", "true")

	cmd := rootCmd()
	cmd.SetArgs([]string{"serve"})
	cmd.SetOut(io.Discard)

	err := cmd.Execute()

	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("error = %v, want invalid config", err)
	}
}

func TestMigrate_InMemoryIsAnError(t *testing.T) {
	t.Setenv("USE_IN_MEMORY_STORAGE", "true")

	cmd := rootCmd()
	cmd.SetArgs([]string{"migrate"})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error")
	}
}

// Requirement: create-admin is idempotent and leaves the user an admin.
func TestCreateAdmin(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memoryStorage()

	// Act
	first, created, err := createAdmin(ctx, store, quietLogger(), "Root@Example.com", "password123", "")
	if err != nil {
		t.Fatalf("createAdmin: %v", err)
	}
	second, createdAgain, err := createAdmin(ctx, store, quietLogger(), "root@example.com", "", "")
	if err != nil {
		t.Fatalf("second createAdmin: %v", err)
	}

	// Assert
	if !created || createdAgain {
		t.Errorf("created = %v, %v; want true, false", created, createdAgain)
	}
	if first.ID != second.ID {
		t.Errorf("second run created a new user")
	}
	latest, err := store.app.LatestRole(ctx, first.ID)
	if err != nil || latest.Role != starterp.RoleAdmin {
		t.Errorf("latest role = %+v, %v", latest, err)
	}
}

func TestStarterConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Secret = "secretshouldbeatleast32charslong"
	cfg.Auth.Bearer = "session"
	cfg.Google = config.GoogleConfig{ClientID: "id", ClientSecret: "secret"}

	sc := starterConfig(cfg, memoryStorage(), metrics.New(), fiber.New(), quietLogger())
	s, err := starterp.New(sc)

	if err != nil {
		t.Fatalf("starterp.New: %v", err)
	}
	if s.Tokens != nil {
		t.Error("session bearer mode should not issue JWTs")
	}
	if sc.Google == nil || sc.Google.ClientID != "id" {
		t.Errorf("google config = %+v", sc.Google)
	}
}

func TestCreateAdminCmd_RequiresEmail(t *testing.T) {
	t.Setenv("USE_IN_MEMORY_STORAGE", "true")
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs([]string{"create-admin"})
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Error("expected missing --email error")
	}
}
