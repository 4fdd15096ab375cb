package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables. Every variable is prefixed with
// BEEGET_; the defaults reproduce the stock bee gateway setup, so the tool
// works with no environment at all.
type Config struct {
	ReleaseRepo       string `envconfig:"RELEASE_REPO" default:"ethersphere/bee"`
	ReleaseAPIBaseURL string `envconfig:"RELEASE_API_BASE_URL" default:"https://api.github.com"`
	GitHubToken       string `envconfig:"GITHUB_TOKEN"`

	InstallDir string `envconfig:"INSTALL_DIR"` // empty: per-OS default
	OutputDir  string `envconfig:"OUTPUT_DIR"`  // empty: current directory

	GatewayURL    string        `envconfig:"GATEWAY_URL" default:"http://localhost:1633"`
	ProbeAddress  string        `envconfig:"PROBE_ADDRESS" default:"localhost:1633"`
	ProbeAttempts int           `envconfig:"PROBE_ATTEMPTS" default:"30"`
	ProbeInterval time.Duration `envconfig:"PROBE_INTERVAL" default:"1s"`
	ProbeTimeout  time.Duration `envconfig:"PROBE_TIMEOUT" default:"1s"`
	JoinTimeout   time.Duration `envconfig:"JOIN_TIMEOUT" default:"1s"`

	LogLevel           string `envconfig:"LOG_LEVEL" default:"INFO"`
	HistoryDBPath      string `envconfig:"HISTORY_DB_PATH"` // empty: history disabled
	DiscordWebhookURL  string `envconfig:"DISCORD_WEBHOOK_URL"`
	MetricsBindAddress string `envconfig:"METRICS_BIND_ADDRESS"` // empty: no metrics listener
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("beeget", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
