package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Service holds process-level settings shared by both binaries.
type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	OpsPort     string `envconfig:"SERVICE_OPS_PORT" default:"8081"`
}

// Postgres holds the source database connection settings.
type Postgres struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"postgres"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	Database string `envconfig:"POSTGRES_DB" default:"postgres"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
}

// DSN returns the keyword/value connection string for pgx.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s",
		p.Host, p.Port, p.Database, p.User, p.Password)
}

// ClickHouse holds the destination warehouse connection settings.
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" default:"clickhouse"`
	Port            string `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database        string `envconfig:"CLICKHOUSE_DB" default:"analytics"`
	User            string `envconfig:"CLICKHOUSE_USER" default:"sysadmin"`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:"sysadmin"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// Kafka holds the broker settings for the streaming pipeline. One topic per
// source table, named by the Debezium topic prefix convention.
type Kafka struct {
	BootstrapServers string   `envconfig:"KAFKA_BOOTSTRAP_SERVERS" default:"kafka:9092"`
	GroupID          string   `envconfig:"KAFKA_GROUP_ID" default:"adtech-etl-group"`
	AutoOffsetReset  string   `envconfig:"KAFKA_AUTO_OFFSET_RESET" default:"earliest"`
	Topics           []string `envconfig:"KAFKA_TOPICS" default:"postgres.public.advertiser,postgres.public.campaign,postgres.public.impressions,postgres.public.clicks"`
	PollTimeoutMs    int      `envconfig:"KAFKA_POLL_TIMEOUT_MS" default:"1000"`

	// DeadLetterSuffix enables the dead-letter policy for undecodable
	// messages. Empty means the topic worker halts instead.
	DeadLetterSuffix string `envconfig:"KAFKA_DEAD_LETTER_SUFFIX" default:""`
}

// PollTimeout returns the consumer poll timeout.
func (k Kafka) PollTimeout() time.Duration {
	return time.Duration(k.PollTimeoutMs) * time.Millisecond
}

// Sync holds the batch pipeline cadence and paging settings.
type Sync struct {
	IntervalSec   int `envconfig:"SYNC_INTERVAL" default:"300"`
	PageSize      int `envconfig:"SYNC_BATCH_PAGE_SIZE" default:"1000"`
	RunTimeoutSec int `envconfig:"SYNC_RUN_TIMEOUT_SEC" default:"120"`

	// WatermarkOverrides forces per-table cursors on startup, e.g.
	// "advertiser=2025-01-01T00:00:00Z,campaign=2025-01-02T00:00:00Z".
	WatermarkOverrides string `envconfig:"SYNC_WATERMARK_OVERRIDES"`
}

// Interval returns the tick cadence of the batch scheduler.
func (s Sync) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

// RunTimeout bounds a single batch run.
func (s Sync) RunTimeout() time.Duration {
	return time.Duration(s.RunTimeoutSec) * time.Second
}

// ParseWatermarkOverrides converts the raw override list into cursors.
func (s Sync) ParseWatermarkOverrides() (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	if strings.TrimSpace(s.WatermarkOverrides) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s.WatermarkOverrides, ",") {
		table, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid watermark override %q, want table=RFC3339", pair)
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid watermark override for table %q: %w", table, err)
		}
		out[table] = ts.UTC()
	}
	return out, nil
}

type Config struct {
	Service    Service
	Postgres   Postgres
	ClickHouse ClickHouse
	Kafka      Kafka
	Sync       Sync
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Sync.IntervalSec <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %d", c.Sync.IntervalSec)
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_PAGE_SIZE must be positive, got %d", c.Sync.PageSize)
	}
	if c.Sync.RunTimeoutSec <= 0 {
		return fmt.Errorf("SYNC_RUN_TIMEOUT_SEC must be positive, got %d", c.Sync.RunTimeoutSec)
	}
	if len(c.Kafka.Topics) == 0 {
		return fmt.Errorf("KAFKA_TOPICS must name at least one topic")
	}
	if _, err := c.Sync.ParseWatermarkOverrides(); err != nil {
		return err
	}
	return nil
}
