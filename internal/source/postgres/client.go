package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/config"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// Client wraps the pgx connection pool to the transactional store
type Client struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewClient connects to PostgreSQL and verifies the connection
func NewClient(ctx context.Context, cfg *config.Postgres, log *zap.Logger) (*Client, error) {
	log.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.String("database", cfg.Database))

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}

	log.Info("PostgreSQL connection established successfully")

	return &Client{pool: pool, log: log}, nil
}

// Pool returns the underlying connection pool
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Ping checks if the PostgreSQL connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes the connection pool
func (c *Client) Close() {
	c.log.Info("Closing PostgreSQL connection pool")
	c.pool.Close()
}
