package etl

import (
	"context"

	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/warehouse"
)

// Loader implements RowLoader on top of the warehouse writer. A page either
// lands whole or not at all; the writer's batch send carries that guarantee.
type Loader struct {
	wh  warehouse.Writer
	log *zap.Logger
}

func NewLoader(wh warehouse.Writer, log *zap.Logger) *Loader {
	return &Loader{wh: wh, log: log}
}

func (l *Loader) LoadAdvertisers(ctx context.Context, rows []domain.AdvertiserRow) (int, error) {
	n, err := l.wh.InsertAdvertisers(ctx, rows)
	if err != nil {
		return 0, err
	}
	l.log.Debug("Loaded advertiser versions", zap.Int("count", n))
	return n, nil
}

func (l *Loader) LoadCampaigns(ctx context.Context, rows []domain.CampaignRow) (int, error) {
	n, err := l.wh.InsertCampaigns(ctx, rows)
	if err != nil {
		return 0, err
	}
	l.log.Debug("Loaded campaign versions", zap.Int("count", n))
	return n, nil
}

func (l *Loader) LoadImpressions(ctx context.Context, rows []domain.ImpressionRow) (int, error) {
	n, err := l.wh.InsertImpressions(ctx, rows)
	if err != nil {
		return 0, err
	}
	l.log.Debug("Loaded impression rows", zap.Int("count", n))
	return n, nil
}

func (l *Loader) LoadClicks(ctx context.Context, rows []domain.ClickRow) (int, error) {
	n, err := l.wh.InsertClicks(ctx, rows)
	if err != nil {
		return 0, err
	}
	l.log.Debug("Loaded click rows", zap.Int("count", n))
	return n, nil
}
