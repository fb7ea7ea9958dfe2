package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/worksched/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("file values", func(t *testing.T) {
		path := writeConfig(t, `
app:
  name: worksched-test
nats:
  urls:
    - nats://10.0.0.1:4222
  reconnect_wait: 1s
storage:
  path: /tmp/ws.db
  retention: 48h
scheduler:
  safety_margin_days: 30
  default_tempo: extended
  quiet_hours:
    start: "22:00"
    end: "07:00"
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "worksched-test", cfg.App.Name)
		assert.Equal(t, []string{"nats://10.0.0.1:4222"}, cfg.NATS.URLs)
		assert.Equal(t, time.Second, cfg.NATS.ReconnectWait)
		assert.Equal(t, 48*time.Hour, cfg.Storage.Retention)
		assert.Equal(t, 30, cfg.Scheduler.SafetyMarginDays)
		assert.Equal(t, model.TempoExtended, cfg.Scheduler.DefaultTempo)
		assert.Equal(t, model.GranularityStandard, cfg.Scheduler.DefaultGranularity)
		assert.Equal(t, model.ClockWindow{Start: model.MustClock("22:00"), End: model.MustClock("07:00")}, cfg.Scheduler.QuietHours)
		assert.True(t, cfg.Scheduler.PreviewRemediations)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("WORKSCHED_SCHEDULER_DEFAULT_TEMPO", "fast_track")
		path := writeConfig(t, "app:\n  name: env\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, model.TempoFastTrack, cfg.Scheduler.DefaultTempo)
		assert.Equal(t, 90, cfg.Scheduler.SafetyMarginDays)
		assert.Equal(t, 30*time.Second, cfg.Metrics.Interval)
	})

	t.Run("invalid values", func(t *testing.T) {
		tests := map[string]string{
			"tempo":       "scheduler:\n  default_tempo: leisurely\n",
			"granularity": "scheduler:\n  default_granularity: hourly\n",
			"cron":        "storage:\n  cleanup_schedule: every day\n",
			"quiet hours": "scheduler:\n  quiet_hours:\n    start: \"25:00\"\n    end: \"07:00\"\n",
			"email":       "alerts:\n  email:\n    host: smtp.example.com\n",
		}
		for name, body := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := Load(writeConfig(t, body))
				assert.Error(t, err)
			})
		}
	})

	t.Run("alert channels", func(t *testing.T) {
		path := writeConfig(t, `
alerts:
  webhook_url: https://hooks.example.com/schedule
  webhook_headers:
    Authorization: Bearer abc
  email:
    host: smtp.example.com
    from: scheduler@example.com
    recipients: [pm@example.com]
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://hooks.example.com/schedule", cfg.Alerts.WebhookURL)
		assert.Equal(t, "Bearer abc", cfg.Alerts.WebhookHeaders["authorization"])
		assert.Equal(t, 10*time.Second, cfg.Alerts.WebhookTimeout)
		assert.Equal(t, 587, cfg.Alerts.Email.Port)
		assert.Equal(t, []string{"pm@example.com"}, cfg.Alerts.Email.Recipients)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
