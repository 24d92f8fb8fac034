package stream

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/etl"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/warehouse"
)

// Processor translates change events into versioned warehouse appends using
// the same row mapping as the batch transformer. Writes are per-event for
// latency, and idempotent: replaying an event appends an identical version
// that the warehouse collapses.
//
// Deletes never remove rows. A dimension delete appends a tombstone version
// flagged is_deleted, stamped with the event's source time so it outranks
// earlier versions on merge. Fact tables are append-only in the source too,
// so updates and deletes on them are ignored.
type Processor struct {
	handlers map[string]func(ctx context.Context, env *Envelope) error
	log      *zap.Logger
}

// NewProcessor builds the table dispatch map once; per-event routing is a
// plain map lookup.
func NewProcessor(wh warehouse.Writer, log *zap.Logger) *Processor {
	p := &Processor{log: log}
	p.handlers = map[string]func(ctx context.Context, env *Envelope) error{
		domain.TableAdvertiser:  p.advertiserHandler(wh),
		domain.TableCampaign:    p.campaignHandler(wh),
		domain.TableImpressions: p.impressionHandler(wh),
		domain.TableClicks:      p.clickHandler(wh),
	}
	return p
}

// Process routes a decoded event to its target table. An event for a table
// outside the dispatch map is a decode-class failure: it follows the
// dead-letter-or-halt policy rather than being silently dropped.
func (p *Processor) Process(ctx context.Context, env *Envelope) error {
	handler, ok := p.handlers[env.Source.Table]
	if !ok {
		return &domain.DecodeError{Err: fmt.Errorf("no handler for table %q", env.Source.Table)}
	}
	return handler(ctx, env)
}

func (p *Processor) advertiserHandler(wh warehouse.Writer) func(ctx context.Context, env *Envelope) error {
	return func(ctx context.Context, env *Envelope) error {
		src, err := decodeAdvertiserImage(env.Image())
		if err != nil {
			return err
		}

		row := etl.TransformAdvertiser(src)
		if env.Op == OpDelete {
			row.IsDeleted = 1
			row.UpdatedAt = env.Timestamp()
		}

		if _, err := wh.InsertAdvertisers(ctx, []domain.AdvertiserRow{row}); err != nil {
			return err
		}

		p.log.Debug("Applied advertiser event",
			zap.String("op", string(env.Op)),
			zap.Int64("advertiser_id", row.AdvertiserID))
		return nil
	}
}

func (p *Processor) campaignHandler(wh warehouse.Writer) func(ctx context.Context, env *Envelope) error {
	return func(ctx context.Context, env *Envelope) error {
		src, err := decodeCampaignImage(env.Image())
		if err != nil {
			return err
		}

		row := etl.TransformCampaign(src)
		if env.Op == OpDelete {
			row.IsDeleted = 1
			row.UpdatedAt = env.Timestamp()
		}

		if _, err := wh.InsertCampaigns(ctx, []domain.CampaignRow{row}); err != nil {
			return err
		}

		p.log.Debug("Applied campaign event",
			zap.String("op", string(env.Op)),
			zap.Int64("campaign_id", row.CampaignID))
		return nil
	}
}

func (p *Processor) impressionHandler(wh warehouse.Writer) func(ctx context.Context, env *Envelope) error {
	return func(ctx context.Context, env *Envelope) error {
		if env.Op == OpUpdate || env.Op == OpDelete {
			p.log.Warn("Ignoring mutation on append-only fact table",
				zap.String("table", env.Source.Table),
				zap.String("op", string(env.Op)))
			return nil
		}

		src, err := decodeImpressionImage(env.Image())
		if err != nil {
			return err
		}

		row := etl.TransformImpression(src)
		if _, err := wh.InsertImpressions(ctx, []domain.ImpressionRow{row}); err != nil {
			return err
		}
		return nil
	}
}

func (p *Processor) clickHandler(wh warehouse.Writer) func(ctx context.Context, env *Envelope) error {
	return func(ctx context.Context, env *Envelope) error {
		if env.Op == OpUpdate || env.Op == OpDelete {
			p.log.Warn("Ignoring mutation on append-only fact table",
				zap.String("table", env.Source.Table),
				zap.String("op", string(env.Op)))
			return nil
		}

		src, err := decodeClickImage(env.Image())
		if err != nil {
			return err
		}

		row := etl.TransformClick(src)
		if _, err := wh.InsertClicks(ctx, []domain.ClickRow{row}); err != nil {
			return err
		}
		return nil
	}
}
