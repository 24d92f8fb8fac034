package clickhouse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// Repository implements warehouse.Writer for ClickHouse. Every insert is a
// prepared native-protocol batch sent as one unit: either the whole batch is
// acknowledged or none of it counts as written.
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema creates the analytical tables and KPI views if they don't exist
func (r *Repository) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := r.client.Conn().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range viewStatements {
		if err := r.client.Conn().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create view: %w", err)
		}
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// InsertAdvertisers appends advertiser dimension versions
func (r *Repository) InsertAdvertisers(ctx context.Context, rows []domain.AdvertiserRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO dim_advertiser")
	if err != nil {
		return 0, &domain.WriteError{Table: "dim_advertiser", Err: err}
	}

	for _, row := range rows {
		err := batch.Append(
			row.AdvertiserID,
			row.Name,
			row.IsDeleted,
			row.UpdatedAt,
			row.CreatedAt,
		)
		if err != nil {
			return 0, &domain.WriteError{Table: "dim_advertiser", Err: err}
		}
	}

	if err := batch.Send(); err != nil {
		return 0, &domain.WriteError{Table: "dim_advertiser", Err: err}
	}

	return len(rows), nil
}

// InsertCampaigns appends campaign dimension versions
func (r *Repository) InsertCampaigns(ctx context.Context, rows []domain.CampaignRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO dim_campaign")
	if err != nil {
		return 0, &domain.WriteError{Table: "dim_campaign", Err: err}
	}

	for _, row := range rows {
		err := batch.Append(
			row.CampaignID,
			row.Name,
			row.Bid,
			row.Budget,
			row.StartDate,
			row.EndDate,
			row.AdvertiserID,
			row.IsDeleted,
			row.UpdatedAt,
			row.CreatedAt,
		)
		if err != nil {
			return 0, &domain.WriteError{Table: "dim_campaign", Err: err}
		}
	}

	if err := batch.Send(); err != nil {
		return 0, &domain.WriteError{Table: "dim_campaign", Err: err}
	}

	return len(rows), nil
}

// InsertImpressions appends impression fact rows
func (r *Repository) InsertImpressions(ctx context.Context, rows []domain.ImpressionRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO fact_impressions")
	if err != nil {
		return 0, &domain.WriteError{Table: "fact_impressions", Err: err}
	}

	for _, row := range rows {
		err := batch.Append(
			row.ImpressionID,
			row.CampaignID,
			row.EventDate,
			row.EventTime,
			row.CreatedAt,
		)
		if err != nil {
			return 0, &domain.WriteError{Table: "fact_impressions", Err: err}
		}
	}

	if err := batch.Send(); err != nil {
		return 0, &domain.WriteError{Table: "fact_impressions", Err: err}
	}

	return len(rows), nil
}

// InsertClicks appends click fact rows
func (r *Repository) InsertClicks(ctx context.Context, rows []domain.ClickRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO fact_clicks")
	if err != nil {
		return 0, &domain.WriteError{Table: "fact_clicks", Err: err}
	}

	for _, row := range rows {
		err := batch.Append(
			row.ClickID,
			row.CampaignID,
			row.EventDate,
			row.EventTime,
			row.CreatedAt,
		)
		if err != nil {
			return 0, &domain.WriteError{Table: "fact_clicks", Err: err}
		}
	}

	if err := batch.Send(); err != nil {
		return 0, &domain.WriteError{Table: "fact_clicks", Err: err}
	}

	return len(rows), nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}
