package warehouse

import (
	"context"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// Writer is the versioned-append contract shared by both pipelines. Every
// insert is an independent idempotent append; the storage engine collapses
// duplicate versions on merge, so concurrent writers need no coordination.
type Writer interface {
	// InsertAdvertisers appends advertiser dimension versions as one unit.
	InsertAdvertisers(ctx context.Context, rows []domain.AdvertiserRow) (int, error)

	// InsertCampaigns appends campaign dimension versions as one unit.
	InsertCampaigns(ctx context.Context, rows []domain.CampaignRow) (int, error)

	// InsertImpressions appends impression fact rows as one unit.
	InsertImpressions(ctx context.Context, rows []domain.ImpressionRow) (int, error)

	// InsertClicks appends click fact rows as one unit.
	InsertClicks(ctx context.Context, rows []domain.ClickRow) (int, error)

	// InitSchema creates the analytical tables if they don't exist
	InitSchema(ctx context.Context) error

	// Ping checks if the warehouse connection is alive
	Ping(ctx context.Context) error

	// Close closes the warehouse connection
	Close() error
}
