package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Dir     string `yaml:"dir"`
	BotFile string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// AccessConfig lists the Telegram accounts allowed to talk to the bot.
// AdminIDs may additionally run registry-mutating commands.
type AccessConfig struct {
	AuthorizedIDs []int64 `yaml:"authorized_ids" envconfig:"ACCESS_AUTHORIZED_IDS"`
	AdminIDs      []int64 `yaml:"admin_ids" envconfig:"ACCESS_ADMIN_IDS"`
}

const (
	// RegistryBackendFile keeps the server list in a YAML file.
	RegistryBackendFile = "file"
	// RegistryBackendPostgres keeps the server list in Postgres.
	RegistryBackendPostgres = "postgres"
)

// RegistryConfig selects where the server registry is persisted.
type RegistryConfig struct {
	Backend string `yaml:"backend" envconfig:"REGISTRY_BACKEND"`
	Path    string `yaml:"path" envconfig:"REGISTRY_PATH"`
}

// SSHConfig tunes the remote-execution SSH client.
type SSHConfig struct {
	DialTimeoutSeconds int `yaml:"dial_timeout_seconds" envconfig:"SSH_DIAL_TIMEOUT_SECONDS"`
}

// RateLimitConfig holds settings for per-user update throttling.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	Access    AccessConfig    `yaml:"access"`
	Registry  RegistryConfig  `yaml:"registry"`
	SSH       SSHConfig       `yaml:"ssh"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	backend := strings.ToLower(strings.TrimSpace(cfg.Registry.Backend))
	if backend == "" {
		backend = RegistryBackendFile
	}
	switch backend {
	case RegistryBackendFile:
		if strings.TrimSpace(cfg.Registry.Path) == "" {
			cfg.Registry.Path = "servers.yml"
		}
	case RegistryBackendPostgres:
	default:
		return fmt.Errorf("invalid registry.backend %q; allowed: file, postgres", cfg.Registry.Backend)
	}
	cfg.Registry.Backend = backend

	if cfg.SSH.DialTimeoutSeconds < 0 {
		return fmt.Errorf("ssh.dial_timeout_seconds must be >= 0")
	}
	if cfg.SSH.DialTimeoutSeconds == 0 {
		cfg.SSH.DialTimeoutSeconds = 10
	}

	if len(cfg.Access.AuthorizedIDs) == 0 {
		return fmt.Errorf("access.authorized_ids must list at least one user")
	}

	return nil
}

// IsAuthorized reports whether the given user may interact with the bot.
// Admins are implicitly authorized.
func (a AccessConfig) IsAuthorized(userID int64) bool {
	for _, id := range a.AuthorizedIDs {
		if id == userID {
			return true
		}
	}
	return a.IsAdmin(userID)
}

// IsAdmin reports whether the given user may run registry-mutating commands.
func (a AccessConfig) IsAdmin(userID int64) bool {
	for _, id := range a.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
