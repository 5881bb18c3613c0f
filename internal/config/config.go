// Package config loads the bot configuration from config.toml with
// environment overrides for deployment platforms that only expose env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8000"
	DefaultTimeoutSecs   = 60
	DefaultDownloadSecs  = 30
	DefaultSweepInterval = "10m"
)

// DefaultModels is the fallback generation chain used when neither the
// config file nor GEMINI_MODELS names one.
var DefaultModels = []string{"gemini-3-flash-preview", "gemini-2.0-flash"}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Gemini   GeminiConfig   `toml:"gemini"`
	Session  SessionConfig  `toml:"session"`
	Operator OperatorConfig `toml:"operator"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type TelegramConfig struct {
	BotToken     string `toml:"bot_token" validate:"required"`
	DownloadSecs int    `toml:"download_timeout_seconds" validate:"gte=0"`
}

type GeminiConfig struct {
	APIKey         string   `toml:"api_key" validate:"required"`
	Models         []string `toml:"models" validate:"min=1,dive,required"`
	TimeoutSeconds int      `toml:"timeout_seconds" validate:"gte=0"`
}

type SessionConfig struct {
	// IdleTTLMinutes evicts sessions idle for longer than this many
	// minutes. 0 disables eviction and the store grows per distinct user.
	IdleTTLMinutes int    `toml:"idle_ttl_minutes" validate:"gte=0"`
	SweepInterval  string `toml:"sweep_interval"`
}

type OperatorConfig struct {
	// AdminID is the Telegram user ID allowed to use privileged controls
	// and the target for failure diagnostics. 0 means no operator.
	AdminID     int64  `toml:"admin_id"`
	RedeployURL string `toml:"redeploy_url" validate:"omitempty,url"`
}

// Load reads the TOML file at path (DefaultConfigPath when empty), applies
// environment overrides, and validates the result. A missing file is fine
// as long as the required values arrive via environment.
func Load(path string) (Config, error) {
	cfg := Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: DefaultHTTPAddr},
		Gemini: GeminiConfig{
			Models:         append([]string(nil), DefaultModels...),
			TimeoutSeconds: DefaultTimeoutSecs,
		},
		Session:  SessionConfig{SweepInterval: DefaultSweepInterval},
		Telegram: TelegramConfig{DownloadSecs: DefaultDownloadSecs},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_MODELS")); v != "" {
		models := make([]string, 0, 2)
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		if len(models) > 0 {
			cfg.Gemini.Models = models
		}
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Operator.AdminID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv("REDEPLOY_URL")); v != "" {
		cfg.Operator.RedeployURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_MINUTES")); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil && ttl >= 0 {
			cfg.Session.IdleTTLMinutes = ttl
		}
	}
}
