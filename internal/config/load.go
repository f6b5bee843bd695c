package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config.yaml next to the binary or in /etc/mintpipe.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mintpipe")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment variables carry the rest.
	}

	// MINTPIPE_SERVER_PORT, MINTPIPE_DATABASE_URL, MINTPIPE_CHAIN_RPC_URL, ...
	v.SetEnvPrefix("MINTPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags and returns a
// descriptive error naming the first offending field.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf(
				"invalid configuration: field %q failed on the %q rule",
				first.Namespace(), first.Tag(),
			)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.max_token_id", 10000)
	v.SetDefault("chain.placeholder_uri", "ipfs://placeholder")

	v.SetDefault("mint.concurrency", 2)
	v.SetDefault("mint.queue_size", 100)
	v.SetDefault("mint.task_timeout", 2*time.Minute)
	v.SetDefault("mint.cleanup_ttl", 24*time.Hour)
	v.SetDefault("mint.tick_budget", 50*time.Second)
	v.SetDefault("mint.cron_schedule", "")
}
