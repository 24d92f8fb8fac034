package etl

import (
	"context"
	"time"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// Extractor pages changed rows out of the transactional store. Each call
// returns at most limit rows whose (cursor, id) tuple is strictly greater
// than (since, afterID), ordered ascending by that tuple. The composite
// position lets a caller resume inside a group of rows sharing one cursor
// timestamp. Dimension cursors are the later of updated_at and created_at;
// fact cursors are created_at.
type Extractor interface {
	AdvertisersSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]domain.Advertiser, error)
	CampaignsSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]domain.Campaign, error)
	ImpressionsSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]domain.Impression, error)
	ClicksSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]domain.Click, error)
}

// RowLoader writes one transformed page to the warehouse as a single unit.
// On error none of the page may be considered confirmed.
type RowLoader interface {
	LoadAdvertisers(ctx context.Context, rows []domain.AdvertiserRow) (int, error)
	LoadCampaigns(ctx context.Context, rows []domain.CampaignRow) (int, error)
	LoadImpressions(ctx context.Context, rows []domain.ImpressionRow) (int, error)
	LoadClicks(ctx context.Context, rows []domain.ClickRow) (int, error)
}
