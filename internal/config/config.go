package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	Gemini     GeminiConfig     `mapstructure:"gemini" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Publisher  PublisherConfig  `mapstructure:"publisher" validate:"required"`
	Staging    StagingConfig    `mapstructure:"staging"`
	Task       TaskConfig       `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" validate:"required,gt=0"`
	MaxFiles        int           `mapstructure:"max_files" validate:"required,gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"required,gt=0"`
}

// GeminiConfig configures the Gemini-backed generation connector.
type GeminiConfig struct {
	APIKey          string `mapstructure:"api_key" validate:"required"`
	Model           string `mapstructure:"model" validate:"required"`
	FontPath        string `mapstructure:"font_path"`
	MaxOutputTokens int32  `mapstructure:"max_output_tokens" validate:"gte=0"`
}

// GenerationConfig holds the per-operation timeouts and instruction settings
// used by the deck generation workflow.
type GenerationConfig struct {
	CreateWorkspaceTimeout time.Duration `mapstructure:"create_workspace_timeout" validate:"required,gt=0"`
	SourceWaitTimeout      time.Duration `mapstructure:"source_wait_timeout" validate:"required,gt=0"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout" validate:"required,gt=0"`
	AwaitTimeout           time.Duration `mapstructure:"await_timeout" validate:"required,gt=0"`
	DownloadTimeout        time.Duration `mapstructure:"download_timeout" validate:"required,gt=0"`
	PollInterval           time.Duration `mapstructure:"poll_interval" validate:"required,gt=0"`
	Language               string        `mapstructure:"language" validate:"required"`
	Style                  string        `mapstructure:"style"`
	InstructionsTemplate   string        `mapstructure:"instructions_template"`
	DefaultTitle           string        `mapstructure:"default_title" validate:"required,max=200"`
}

// PublisherConfig selects where finished artifacts are published.
type PublisherConfig struct {
	Kind            string `mapstructure:"kind" validate:"required,oneof=local gcs"`
	LocalDir        string `mapstructure:"local_dir" validate:"required_if=Kind local"`
	BaseURL         string `mapstructure:"base_url"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Kind gcs"`
	PublicBaseURL   string `mapstructure:"public_base_url" validate:"omitempty,url"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// StagingConfig controls the per-task scratch directories.
type StagingConfig struct {
	BaseDir         string `mapstructure:"base_dir"`
	RetainFailedDir string `mapstructure:"retain_failed_dir"`
}

// TaskConfig configures background execution of generation runs.
type TaskConfig struct {
	MaxConcurrentRuns      int           `mapstructure:"max_concurrent_runs" validate:"required,gt=0"`
	StuckTaskAge           time.Duration `mapstructure:"stuck_task_age" validate:"required,gt=0"`
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"required,gt=0"`
	TerminalWriteTimeout   time.Duration `mapstructure:"terminal_write_timeout" validate:"required,gt=0"`
}
