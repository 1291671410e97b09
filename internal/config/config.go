// Package config manages the relay configuration from a .env file,
// an optional config.yaml, environment variables and default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/edgard/kakeibo/internal/errs"
	"github.com/edgard/kakeibo/internal/filter"
)

// Sink names accepted by notify.sink.
const (
	SinkIFTTT    = "ifttt"
	SinkTelegram = "telegram"
)

// Config defines the application configuration. Every key can be set through
// config.yaml or a KAKEIBO_ prefixed environment variable (e.g. KAKEIBO_SLACK_TOKEN).
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	IFTTT     IFTTTConfig     `mapstructure:"ifttt"     validate:"-"`
	Telegram  TelegramConfig  `mapstructure:"telegram"  validate:"-"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// SlackConfig holds the history API parameters.
type SlackConfig struct {
	BaseURL   string        `mapstructure:"base_url"   validate:"required,url"`
	Method    string        `mapstructure:"method"     validate:"required"`
	ChannelID string        `mapstructure:"channel_id" validate:"required"`
	Token     string        `mapstructure:"token"      validate:"required"`
	Timeout   time.Duration `mapstructure:"timeout"    validate:"min=1s,max=10m"`
}

// FilterConfig is the exclusion window subtracted from the current time.
type FilterConfig struct {
	ExcludeDays    int `mapstructure:"exclude_days"    validate:"min=0"`
	ExcludeHours   int `mapstructure:"exclude_hours"   validate:"min=0"`
	ExcludeMinutes int `mapstructure:"exclude_minutes" validate:"min=0"`
}

// Window converts the configured exclusion window for the filter.
func (c FilterConfig) Window() filter.Window {
	return filter.Window{
		Days:    c.ExcludeDays,
		Hours:   c.ExcludeHours,
		Minutes: c.ExcludeMinutes,
	}
}

// NotifyConfig selects the sink and the settings shared by all sinks.
// RatePerSec of zero disables pacing.
type NotifyConfig struct {
	Sink       string        `mapstructure:"sink"         validate:"oneof=ifttt telegram"`
	RatePerSec float64       `mapstructure:"rate_per_sec" validate:"min=0"`
	Timeout    time.Duration `mapstructure:"timeout"      validate:"min=1s,max=10m"`
}

type IFTTTConfig struct {
	BaseURL   string `mapstructure:"base_url"   validate:"required,url"`
	EventName string `mapstructure:"event_name" validate:"required"`
	Token     string `mapstructure:"token"      validate:"required"`
}

// TelegramConfig configures the alternate sink. ServerURL overrides the
// Bot API endpoint and is mostly useful for self-hosted Bot API servers.
type TelegramConfig struct {
	Token     string `mapstructure:"token"      validate:"required"`
	ChatID    string `mapstructure:"chat_id"    validate:"required"`
	ServerURL string `mapstructure:"server_url" validate:"omitempty,url"`
}

// DatabaseConfig configures the run journal. An empty Path disables it.
type DatabaseConfig struct {
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention" validate:"min=1h"`
}

// Enabled reports whether the run journal should be opened.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.Path) != ""
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig schedules one task. RunOnStart fires the task once as soon as
// the scheduler starts, in addition to its cron schedule. For the relay this
// is only safe when the exclusion window does not overlap the previous tick,
// otherwise recently relayed messages are sent again.
type TaskConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Schedule   string `mapstructure:"schedule"     validate:"required_if=Enabled true"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// Load reads configuration from .env, the YAML file at path (skipped when
// missing) and the environment, applies defaults and validates the result.
// Any failure is returned as an *errs.ConfigError.
func Load(path string) (*Config, error) {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, errs.NewConfigError("failed to bind environment", err)
		}
	}

	if err := readFile(v, path); err != nil {
		return nil, errs.NewConfigError("failed to read config file", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the static constraints and the section of the selected sink.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		return errs.NewConfigError("invalid configuration", err)
	}

	switch c.Notify.Sink {
	case SinkIFTTT:
		if err := validate.Struct(c.IFTTT); err != nil {
			return errs.NewConfigError("invalid ifttt configuration", err)
		}
	case SinkTelegram:
		if err := validate.Struct(c.Telegram); err != nil {
			return errs.NewConfigError("invalid telegram configuration", err)
		}
	default:
		return errs.NewConfigError(fmt.Sprintf("unknown notify sink %q", c.Notify.Sink), nil)
	}

	return nil
}

func readFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Config file not found is okay, we'll use defaults and the environment
			return nil
		}
		return err
	}

	v.SetConfigFile(path)
	return v.ReadInConfig()
}
