package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	// AllowedOrigins restricts websocket handshakes; empty means same-origin
	// checks only.
	AllowedOrigins []string

	// ReconnectWindow is the grace a disconnected player has to rejoin
	// before the game is forfeited.
	ReconnectWindow time.Duration

	DefaultTimeControl string

	ResultWebhookURL string
	MsgOverrideDir   string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:         ":8080",
		ReconnectWindow:    30 * time.Second,
		DefaultTimeControl: "10+0",
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ResultWebhookURL = strings.TrimSpace(os.Getenv("RESULT_WEBHOOK_URL"))
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("RECONNECT_WINDOW_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectWindow = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_TIME_CONTROL")); v != "" {
		cfg.DefaultTimeControl = v
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
