package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every override so tests control exactly what is set.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"BOT_TOKEN", "GEMINI_API_KEY", "GEMINI_MODELS", "PORT", "ADMIN_ID", "REDEPLOY_URL", "SESSION_TTL_MINUTES"} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "key-1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "123:abc" || cfg.Gemini.APIKey != "key-1" {
		t.Fatalf("credentials = %q/%q", cfg.Telegram.BotToken, cfg.Gemini.APIKey)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("addr = %q, want %q", cfg.Server.Addr, DefaultHTTPAddr)
	}
	if len(cfg.Gemini.Models) != len(DefaultModels) || cfg.Gemini.Models[0] != DefaultModels[0] {
		t.Fatalf("models = %v, want defaults %v", cfg.Gemini.Models, DefaultModels)
	}
	if cfg.Session.IdleTTLMinutes != 0 {
		t.Fatalf("idle ttl = %d, want 0 by default", cfg.Session.IdleTTLMinutes)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[telegram]
bot_token = "file-token"

[gemini]
api_key = "file-key"
models = ["model-a", "model-b"]

[session]
idle_ttl_minutes = 30

[operator]
admin_id = 99
redeploy_url = "https://deploy.example.com/hook"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "file-token" || cfg.Gemini.APIKey != "file-key" {
		t.Fatalf("credentials = %q/%q", cfg.Telegram.BotToken, cfg.Gemini.APIKey)
	}
	if len(cfg.Gemini.Models) != 2 || cfg.Gemini.Models[0] != "model-a" {
		t.Fatalf("models = %v", cfg.Gemini.Models)
	}
	if cfg.Session.IdleTTLMinutes != 30 || cfg.Operator.AdminID != 99 {
		t.Fatalf("ttl/admin = %d/%d", cfg.Session.IdleTTLMinutes, cfg.Operator.AdminID)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[telegram]
bot_token = "file-token"

[gemini]
api_key = "file-key"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("GEMINI_MODELS", " model-x , model-y ,")
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_ID", "777")
	t.Setenv("SESSION_TTL_MINUTES", "45")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "env-token" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.BotToken)
	}
	if len(cfg.Gemini.Models) != 2 || cfg.Gemini.Models[0] != "model-x" || cfg.Gemini.Models[1] != "model-y" {
		t.Fatalf("models = %v, want trimmed env split", cfg.Gemini.Models)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Operator.AdminID != 777 || cfg.Session.IdleTTLMinutes != 45 {
		t.Fatalf("admin/ttl = %d/%d", cfg.Operator.AdminID, cfg.Session.IdleTTLMinutes)
	}
}

func TestLoadFailsWithoutCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key-only")

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("Load should fail without a bot token")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("error = %v, want validation failure", err)
	}
}

func TestLoadRejectsBadRedeployURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "key-1")
	t.Setenv("REDEPLOY_URL", "not a url")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Load should reject a malformed redeploy URL")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[telegram\nbroken"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load should fail on malformed TOML")
	}
}
