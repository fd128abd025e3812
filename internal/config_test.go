package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/vaultkeeper/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode without token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail")
	}
}

func TestAppConfig_Transport(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}

	cfg.App.Transport = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown transport should fail")
	}

	cfg.App.Transport = TransportHTTP
	cfg.App.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("http transport needs a port")
	}

	cfg.App.Transport = TransportStdio
	if err := cfg.Validate(); err != nil {
		t.Errorf("port is irrelevant for stdio: %v", err)
	}
}

func TestVaultConfig_RootRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.Root = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty vault root should fail")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Config.Validate should propagate auth validation error")
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := strings.Join([]string{
		"app:",
		"  log_level: debug",
		"  transport: http",
		"  http:",
		"    port: 9090",
		"vault:",
		"  root: ${TEST_VAULT_DIR}/notes",
		"  strict_symlinks: false",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEST_VAULT_DIR", dir)
	t.Setenv("VAULTKEEPER_APP_HTTP_PORT", "7070")
	t.Setenv("VAULTKEEPER_AUTH_MODE", "token")
	t.Setenv("VAULTKEEPER_AUTH_TOKEN", "s3cret")

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg, pkgconfig.WithEnvPrefix(EnvPrefix)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.App.Transport != TransportHTTP {
		t.Errorf("transport = %q", cfg.App.Transport)
	}
	if cfg.App.HTTP.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.App.HTTP.Port)
	}
	if want := filepath.Join(dir, "notes"); cfg.Vault.Root != want {
		t.Errorf("root = %q, want %q", cfg.Vault.Root, want)
	}
	if cfg.Vault.StrictSymlinks {
		t.Error("strict_symlinks should be false")
	}
	if !cfg.Auth.AuthEnabled() || cfg.Auth.Token != "s3cret" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestRun_MissingVaultRoot(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.Root = filepath.Join(t.TempDir(), "absent")

	err := Run(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard))
	if err == nil {
		t.Fatal("missing root should fail")
	}
	if !strings.Contains(err.Error(), "init storage") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_StdioStopsAtEOF(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.Root = filepath.Join(t.TempDir(), "vault")
	cfg.Vault.CreateRoot = true

	var logs bytes.Buffer
	err := Run(context.Background(),
		WithConfig(cfg),
		WithStdio(strings.NewReader(""), io.Discard),
		WithLogOutput(&logs))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if info, err := os.Stat(cfg.Vault.Root); err != nil || !info.IsDir() {
		t.Errorf("vault root not created: %v", err)
	}
	if !strings.Contains(logs.String(), "Serving MCP over stdio") {
		t.Errorf("missing startup log in %q", logs.String())
	}
}
