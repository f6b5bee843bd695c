package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Chain     ChainConfig     `mapstructure:"chain" validate:"required"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Mint      MintConfig      `mapstructure:"mint" validate:"required"`
}

// ServerConfig contains all HTTP-server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// ChainConfig contains the settings needed to finalize mints on chain and
// to read token state from the contract.
type ChainConfig struct {
	RPCURL          string `mapstructure:"rpc_url" validate:"required,url"`
	ContractAddress string `mapstructure:"contract_address" validate:"required,len=42,startswith=0x"`
	SigningKey      string `mapstructure:"signing_key" validate:"required,len=64,hexadecimal"`
	ChainID         int64  `mapstructure:"chain_id" validate:"required,gt=0"`
	// MaxTokenID is the highest token id the contract can mint; enqueue
	// requests above it are rejected.
	MaxTokenID     int64  `mapstructure:"max_token_id" validate:"required,gt=0"`
	PlaceholderURI string `mapstructure:"placeholder_uri" validate:"required"`
}

// ProvidersConfig carries the per-provider API keys and endpoint overrides.
// A provider with an empty key is registered but fails fast on submit, so a
// partially configured deployment still serves the others.
type ProvidersConfig struct {
	OpenAIAPIKey      string `mapstructure:"openai_api_key"`
	OpenAIBaseURL     string `mapstructure:"openai_base_url"`
	StabilityAPIKey   string `mapstructure:"stability_api_key"`
	StabilityBaseURL  string `mapstructure:"stability_base_url"`
	HuggingFaceAPIKey string `mapstructure:"huggingface_api_key"`
	HuggingFaceURL    string `mapstructure:"huggingface_base_url"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
}

// MintConfig tunes the coordinator: queue capacity, worker concurrency,
// timeout and cleanup policy, and the tick schedule.
type MintConfig struct {
	// Concurrency bounds the number of in-flight provider calls.
	Concurrency int `mapstructure:"concurrency" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size" validate:"required,gt=0"`
	// TaskTimeout is the default deadline applied to new tasks.
	TaskTimeout time.Duration `mapstructure:"task_timeout" validate:"required"`
	// CleanupTTL is how long terminal tasks are kept before the sweep
	// deletes them.
	CleanupTTL time.Duration `mapstructure:"cleanup_ttl" validate:"required"`
	// TickBudget is the wall-clock budget for draining the queue inside a
	// single tick.
	TickBudget time.Duration `mapstructure:"tick_budget" validate:"required"`
	// CronSchedule, when non-empty, runs the tick in-process on the given
	// cron expression. Leave empty when an external scheduler hits /cron.
	CronSchedule string `mapstructure:"cron_schedule"`
}
