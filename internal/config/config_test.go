package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Service.Environment)
	assert.Equal(t, "postgres", cfg.Postgres.Host)
	assert.Equal(t, "analytics", cfg.ClickHouse.Database)
	assert.Equal(t, "kafka:9092", cfg.Kafka.BootstrapServers)
	assert.Equal(t, []string{
		"postgres.public.advertiser",
		"postgres.public.campaign",
		"postgres.public.impressions",
		"postgres.public.clicks",
	}, cfg.Kafka.Topics)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval())
	assert.Equal(t, 1000, cfg.Sync.PageSize)
	assert.Empty(t, cfg.Kafka.DeadLetterSuffix)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("SYNC_INTERVAL", "60")
	t.Setenv("KAFKA_TOPICS", "postgres.public.advertiser")
	t.Setenv("KAFKA_DEAD_LETTER_SUFFIX", ".dlq")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, time.Minute, cfg.Sync.Interval())
	assert.Equal(t, []string{"postgres.public.advertiser"}, cfg.Kafka.Topics)
	assert.Equal(t, ".dlq", cfg.Kafka.DeadLetterSuffix)
}

func TestLoad_RejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "SYNC_INTERVAL")
}

func TestLoad_RejectsNonPositivePageSize(t *testing.T) {
	t.Setenv("SYNC_BATCH_PAGE_SIZE", "-5")

	_, err := Load()
	assert.ErrorContains(t, err, "SYNC_BATCH_PAGE_SIZE")
}

func TestLoad_RejectsInvalidWatermarkOverride(t *testing.T) {
	t.Setenv("SYNC_WATERMARK_OVERRIDES", "advertiser=not-a-time")

	_, err := Load()
	assert.ErrorContains(t, err, "watermark override")
}

func TestPostgres_DSN(t *testing.T) {
	pg := Postgres{Host: "localhost", Port: "5433", Database: "ads", User: "etl", Password: "secret"}

	assert.Equal(t, "host=localhost port=5433 dbname=ads user=etl password=secret", pg.DSN())
}

func TestSync_ParseWatermarkOverrides(t *testing.T) {
	s := Sync{WatermarkOverrides: "advertiser=2025-03-01T12:00:00Z, campaign=2025-04-01T00:00:00+02:00"}

	out, err := s.ParseWatermarkOverrides()
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), out["advertiser"])
	assert.Equal(t, time.Date(2025, 3, 31, 22, 0, 0, 0, time.UTC), out["campaign"])
}

func TestSync_ParseWatermarkOverrides_RejectsMissingSeparator(t *testing.T) {
	s := Sync{WatermarkOverrides: "advertiser 2025-03-01T12:00:00Z"}

	_, err := s.ParseWatermarkOverrides()
	assert.ErrorContains(t, err, "want table=RFC3339")
}

func TestKafka_PollTimeout(t *testing.T) {
	k := Kafka{PollTimeoutMs: 250}

	assert.Equal(t, 250*time.Millisecond, k.PollTimeout())
}
