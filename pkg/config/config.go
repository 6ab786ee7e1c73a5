package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Upload    UploadConfig    `mapstructure:"upload" validate:"required"`
	Neocities NeocitiesConfig `mapstructure:"neocities" validate:"required"`
	Watch     WatchConfig     `mapstructure:"watch" validate:"required"`
	Log       LogConfig       `mapstructure:"log" validate:"required"`
}

type UploadConfig struct {
	SourceFile string `mapstructure:"source_file" validate:"required,min=1"`
	APIKeyFile string `mapstructure:"api_key_file" validate:"required,min=1"`
}

type NeocitiesConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"min=1,max=600"`
}

type WatchConfig struct {
	DebounceSeconds int `mapstructure:"debounce_seconds" validate:"min=1,max=300"`
	SettleChecks    int `mapstructure:"settle_checks" validate:"min=1,max=60"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// Load reads configuration from an optional TOML file. An empty filename
// yields the built-in defaults, still subject to ACCTFORECAST_* env
// overrides.
func Load(filename string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ACCTFORECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("toml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upload.source_file", "accountforecast.html")
	v.SetDefault("upload.api_key_file", "apikey")

	v.SetDefault("neocities.base_url", "https://neocities.org")
	v.SetDefault("neocities.timeout_seconds", 30)

	v.SetDefault("watch.debounce_seconds", 2)
	v.SetDefault("watch.settle_checks", 3)

	v.SetDefault("log.level", "info")
}

func validateConfig(config *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(config)
}
