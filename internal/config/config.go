package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the service configuration, read from config.toml and
// SQUADBOOSTER_* environment variables.
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Retro struct {
		SameCategoryMerges bool `mapstructure:"same_category_merges"`
		EnforceStepGuards  bool `mapstructure:"enforce_step_guards"`
	} `mapstructure:"retro"`
	Workers struct {
		MaxConcurrent int `mapstructure:"max_concurrent"`
	} `mapstructure:"workers"`
	Redis struct {
		Addr      string `mapstructure:"addr"`
		Password  string `mapstructure:"password"`
		DB        int    `mapstructure:"db"`
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"redis"`
	Trello struct {
		APIKey   string `mapstructure:"api_key"`
		APIToken string `mapstructure:"api_token"`
		ListID   string `mapstructure:"list_id"`
	} `mapstructure:"trello"`
	Google struct {
		Calendar struct {
			Enabled    bool   `mapstructure:"enabled"`
			CalendarID string `mapstructure:"calendar_id"`
		} `mapstructure:"calendar"`
		ServiceAccount map[string]any `mapstructure:"service_account"`
	} `mapstructure:"google"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "squadbooster.db")
	v.SetDefault("log.level", "debug")
	v.SetDefault("retro.same_category_merges", false)
	v.SetDefault("retro.enforce_step_guards", false)
	v.SetDefault("workers.max_concurrent", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.namespace", "squadbooster")
	v.SetDefault("trello.api_key", "")
	v.SetDefault("trello.api_token", "")
	v.SetDefault("trello.list_id", "")
	v.SetDefault("google.calendar.enabled", false)
	v.SetDefault("google.calendar.calendar_id", "")
}

// Load reads configuration from path, or from ./config.toml when path is
// empty. A missing ./config.toml is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SQUADBOOSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("log.level", "SQUADBOOSTER_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workers.MaxConcurrent <= 0 {
		return fmt.Errorf("workers.max_concurrent must be positive")
	}
	if c.Google.Calendar.Enabled {
		if c.Google.Calendar.CalendarID == "" {
			return fmt.Errorf("google.calendar.calendar_id is required when the calendar is enabled")
		}
		if len(c.Google.ServiceAccount) == 0 {
			return fmt.Errorf("google.service_account is required when the calendar is enabled")
		}
	}
	return nil
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func (c *Config) TrelloEnabled() bool {
	return c.Trello.APIKey != "" && c.Trello.APIToken != "" && c.Trello.ListID != ""
}
