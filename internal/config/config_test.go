package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, BusDriverRedis, cfg.BusDriver)
	require.Equal(t, "api.failures", cfg.BusTopic)
	require.Equal(t, "notification-group", cfg.BusGroup)
	require.Equal(t, "0 * * * *", cfg.RetrySchedule)
	require.Equal(t, 3, cfg.RetryMaxCount)
	require.Equal(t, "log", cfg.AlertProvider)
	require.Equal(t, 30*time.Second, cfg.AITimeout)
	require.Equal(t, time.Minute, cfg.SubmissionRateWindow)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_BUS_DRIVER", "NATS")
	t.Setenv("GEMA_NATS_URL", "nats://localhost:4222")
	t.Setenv("GEMA_RETRY_SCHEDULE", "*/5 * * * *")
	t.Setenv("GEMA_ALERT_PROVIDER", "slack")
	t.Setenv("GEMA_ALERT_SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")
	t.Setenv("GEMA_APP_PORT", ":9090")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BusDriverNATS, cfg.BusDriver)
	require.Equal(t, "*/5 * * * *", cfg.RetrySchedule)
	require.Equal(t, "https://hooks.slack.test/x", cfg.AlertSlackWebhook)
	require.Equal(t, ":9090", cfg.HTTPAddress())
}

func TestValidateRejectsIncompleteBusConfig(t *testing.T) {
	require.Error(t, Config{JWTSecret: "s", BusDriver: BusDriverRedis, RetryMaxCount: 3}.Validate())
	require.Error(t, Config{JWTSecret: "s", BusDriver: "kafka", RetryMaxCount: 3}.Validate())
	require.Error(t, Config{BusDriver: BusDriverMemory, RetryMaxCount: 3}.Validate())
	require.NoError(t, Config{JWTSecret: "s", BusDriver: BusDriverMemory, RetryMaxCount: 3}.Validate())
}
