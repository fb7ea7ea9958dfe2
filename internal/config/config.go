// Package config loads service settings with viper. Values come from an
// optional YAML file and WORKSCHED_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/t77yq/worksched/internal/model"
)

// Config is the typed service configuration
type Config struct {
	App       AppConfig
	NATS      NATSConfig
	Storage   StorageConfig
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
	Alerts    AlertsConfig
}

// AppConfig holds process identity settings
type AppConfig struct {
	Name string
}

// NATSConfig holds connection settings
type NATSConfig struct {
	URLs           []string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// StorageConfig holds schedule store settings
type StorageConfig struct {
	Path            string
	Retention       time.Duration
	CleanupSchedule string
}

// SchedulerConfig holds engine defaults
type SchedulerConfig struct {
	SafetyMarginDays    int
	DefaultTempo        model.Tempo
	DefaultGranularity  model.Granularity
	PreviewRemediations bool
	QuietHours          model.ClockWindow
}

// MetricsConfig holds collector settings
type MetricsConfig struct {
	Interval time.Duration
}

// AlertsConfig holds alert delivery settings. Empty values disable a channel.
type AlertsConfig struct {
	WebhookURL     string
	WebhookHeaders map[string]string
	WebhookTimeout time.Duration
	Email          EmailConfig
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "worksched")
	v.SetDefault("nats.urls", []string{"nats://127.0.0.1:4222"})
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connect_timeout", "5s")
	v.SetDefault("storage.path", "schedules.db")
	v.SetDefault("storage.retention", "720h")
	v.SetDefault("storage.cleanup_schedule", "0 0 3 * * *")
	v.SetDefault("scheduler.safety_margin_days", 90)
	v.SetDefault("scheduler.default_tempo", string(model.TempoSteady))
	v.SetDefault("scheduler.default_granularity", string(model.GranularityStandard))
	v.SetDefault("scheduler.preview_remediations", true)
	v.SetDefault("scheduler.quiet_hours.start", "")
	v.SetDefault("scheduler.quiet_hours.end", "")
	v.SetDefault("metrics.interval", "30s")
	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("alerts.webhook_timeout", "10s")
	v.SetDefault("alerts.email.host", "")
	v.SetDefault("alerts.email.port", 587)
}

// Load reads the configuration. An empty path searches ./config and the
// working directory for config.yaml; a missing file is not an error then.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WORKSCHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
		},
		NATS: NATSConfig{
			URLs:           v.GetStringSlice("nats.urls"),
			MaxReconnects:  v.GetInt("nats.max_reconnects"),
			ReconnectWait:  v.GetDuration("nats.reconnect_wait"),
			ConnectTimeout: v.GetDuration("nats.connect_timeout"),
		},
		Storage: StorageConfig{
			Path:            v.GetString("storage.path"),
			Retention:       v.GetDuration("storage.retention"),
			CleanupSchedule: v.GetString("storage.cleanup_schedule"),
		},
		Scheduler: SchedulerConfig{
			SafetyMarginDays:    v.GetInt("scheduler.safety_margin_days"),
			DefaultTempo:        model.Tempo(v.GetString("scheduler.default_tempo")),
			DefaultGranularity:  model.Granularity(v.GetString("scheduler.default_granularity")),
			PreviewRemediations: v.GetBool("scheduler.preview_remediations"),
		},
		Metrics: MetricsConfig{
			Interval: v.GetDuration("metrics.interval"),
		},
		Alerts: AlertsConfig{
			WebhookURL:     v.GetString("alerts.webhook_url"),
			WebhookHeaders: v.GetStringMapString("alerts.webhook_headers"),
			WebhookTimeout: v.GetDuration("alerts.webhook_timeout"),
			Email: EmailConfig{
				Host:       v.GetString("alerts.email.host"),
				Port:       v.GetInt("alerts.email.port"),
				Username:   v.GetString("alerts.email.username"),
				Password:   v.GetString("alerts.email.password"),
				From:       v.GetString("alerts.email.from"),
				Recipients: v.GetStringSlice("alerts.email.recipients"),
			},
		},
	}

	if start, end := v.GetString("scheduler.quiet_hours.start"), v.GetString("scheduler.quiet_hours.end"); start != "" || end != "" {
		window, err := parseWindow(start, end)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler.quiet_hours: %w", err)
		}
		cfg.Scheduler.QuietHours = window
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseWindow(start, end string) (model.ClockWindow, error) {
	s, err := model.ParseClock(start)
	if err != nil {
		return model.ClockWindow{}, err
	}
	e, err := model.ParseClock(end)
	if err != nil {
		return model.ClockWindow{}, err
	}
	return model.ClockWindow{Start: s, End: e}, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	if len(c.NATS.URLs) == 0 {
		return fmt.Errorf("nats.urls must not be empty")
	}
	if c.Scheduler.SafetyMarginDays < 0 {
		return fmt.Errorf("scheduler.safety_margin_days must not be negative")
	}
	switch c.Scheduler.DefaultTempo {
	case model.TempoFastTrack, model.TempoSteady, model.TempoExtended:
	default:
		return fmt.Errorf("unknown scheduler.default_tempo %q", c.Scheduler.DefaultTempo)
	}
	switch c.Scheduler.DefaultGranularity {
	case model.GranularityQuick, model.GranularityStandard, model.GranularityDetailed:
	default:
		return fmt.Errorf("unknown scheduler.default_granularity %q", c.Scheduler.DefaultGranularity)
	}
	if c.Metrics.Interval <= 0 {
		return fmt.Errorf("metrics.interval must be positive")
	}
	if c.Alerts.Email.Host != "" && (c.Alerts.Email.From == "" || len(c.Alerts.Email.Recipients) == 0) {
		return fmt.Errorf("alerts.email needs from and recipients when host is set")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Storage.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid storage.cleanup_schedule: %w", err)
	}
	return nil
}
