package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable the service reads.
const EnvPrefix = "DECKGEN"

var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.log_format":       "json",
	"server.max_upload_bytes": 50 << 20,
	"server.max_files":        20,
	"server.shutdown_timeout": "30s",

	"database.max_open_conns":     10,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  "5m",
	"database.conn_max_idle_time": "1m",

	"auth.token_lifetime": "24h",

	"gemini.model":             "gemini-2.0-flash",
	"gemini.max_output_tokens": 8192,

	"generation.create_workspace_timeout": "60s",
	"generation.source_wait_timeout":      "180s",
	"generation.request_timeout":          "60s",
	"generation.await_timeout":            "600s",
	"generation.download_timeout":         "120s",
	"generation.poll_interval":            "2s",
	"generation.language":                 "zh_Hans",
	"generation.style":                    "detailed, professional",
	"generation.default_title":            "Untitled Deck",

	"publisher.kind":      "local",
	"publisher.local_dir": "generated",

	"task.max_concurrent_runs":       4,
	"task.stuck_task_age":            "30m",
	"task.stuck_task_check_interval": "5m",
	"task.terminal_write_timeout":    "10s",
}

// Keys that have no default but must still be readable from the environment.
var envOnlyKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"gemini.api_key",
	"gemini.font_path",
	"generation.instructions_template",
	"publisher.base_url",
	"publisher.bucket",
	"publisher.public_base_url",
	"publisher.credentials_file",
	"staging.base_dir",
	"staging.retain_failed_dir",
}

// Load configuration from defaults, an optional config.yaml, a .env file and
// DECKGEN_-prefixed environment variables, in increasing order of precedence.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit directory for config.yaml and .env.
// DECKGEN_CONFIG_DIR, when set, overrides dir.
func LoadFrom(dir string) (*Config, error) {
	cfg, err := read(dir)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadUnvalidated reads configuration the same way as Load but skips
// validation. Tools that need only a few groups check those themselves.
func LoadUnvalidated(dir string) (*Config, error) {
	return read(dir)
}

func read(dir string) (*Config, error) {
	if override := os.Getenv(EnvPrefix + "_CONFIG_DIR"); override != "" {
		dir = override
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(dir + "/.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field timing rule.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// A watchdog younger than the longest legitimate wait would fail live runs.
	minAge := c.Generation.AwaitTimeout + c.Generation.DownloadTimeout
	if c.Task.StuckTaskAge <= minAge {
		return fmt.Errorf(
			"config validation failed: task.stuck_task_age (%s) must exceed generation.await_timeout + generation.download_timeout (%s)",
			c.Task.StuckTaskAge, minAge)
	}

	return nil
}
