package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// Extractor reads rows changed since a cursor, one bounded page at a time.
// Paging is keyset on a composite (cursor, id) tuple so a page boundary can
// fall inside a group of rows sharing one timestamp without losing the rest
// of the group. Dimensions use GREATEST(updated_at, created_at) as the
// cursor column, because a freshly inserted row may carry a NULL updated_at;
// facts use created_at. Rows come back ordered ascending by the tuple so
// the caller can advance its position to the last row of each page.
type Extractor struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewExtractor(client *Client, log *zap.Logger) *Extractor {
	return &Extractor{pool: client.Pool(), log: log}
}

const advertisersSinceQuery = `
	SELECT id, name, updated_at, created_at
	FROM advertiser
	WHERE (GREATEST(updated_at, created_at), id) > ($1, $2)
	ORDER BY GREATEST(updated_at, created_at) ASC, id ASC
	LIMIT $3`

// AdvertisersSince returns up to limit advertisers past the (since, afterID)
// position.
func (e *Extractor) AdvertisersSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]domain.Advertiser, error) {
	rows, err := e.pool.Query(ctx, advertisersSinceQuery, since, afterID, limit)
	if err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}
	defer rows.Close()

	var out []domain.Advertiser
	for rows.Next() {
		var a domain.Advertiser
		var updatedAt *time.Time
		if err := rows.Scan(&a.ID, &a.Name, &updatedAt, &a.CreatedAt); err != nil {
			return nil, &domain.ConnectionError{System: "postgres", Err: err}
		}
		if updatedAt != nil {
			a.UpdatedAt = *updatedAt
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}
	return out, nil
}

const campaignsSinceQuery = `
	SELECT id, name, bid, budget, start_date, end_date, advertiser_id, updated_at, created_at
	FROM campaign
	WHERE (GREATEST(updated_at, created_at), id) > ($1, $2)
	ORDER BY GREATEST(updated_at, created_at) ASC, id ASC
	LIMIT $3`

// CampaignsSince returns up to limit campaigns past the (since, afterID)
// position.
func (e *Extractor) CampaignsSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]domain.Campaign, error) {
	rows, err := e.pool.Query(ctx, campaignsSinceQuery, since, afterID, limit)
	if err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		var updatedAt *time.Time
		if err := rows.Scan(&c.ID, &c.Name, &c.Bid, &c.Budget,
			&c.StartDate, &c.EndDate, &c.AdvertiserID, &updatedAt, &c.CreatedAt); err != nil {
			return nil, &domain.ConnectionError{System: "postgres", Err: err}
		}
		if updatedAt != nil {
			c.UpdatedAt = *updatedAt
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}
	return out, nil
}

const impressionsSinceQuery = `
	SELECT id, campaign_id, created_at
	FROM impressions
	WHERE (created_at, id) > ($1, $2)
	ORDER BY created_at ASC, id ASC
	LIMIT $3`

// ImpressionsSince returns up to limit impressions past the (since, afterID)
// position.
func (e *Extractor) ImpressionsSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]domain.Impression, error) {
	rows, err := e.pool.Query(ctx, impressionsSinceQuery, since, afterID, limit)
	if err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}
	defer rows.Close()

	var out []domain.Impression
	for rows.Next() {
		var imp domain.Impression
		if err := rows.Scan(&imp.ID, &imp.CampaignID, &imp.CreatedAt); err != nil {
			return nil, &domain.ConnectionError{System: "postgres", Err: err}
		}
		out = append(out, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}
	return out, nil
}

const clicksSinceQuery = `
	SELECT id, campaign_id, created_at
	FROM clicks
	WHERE (created_at, id) > ($1, $2)
	ORDER BY created_at ASC, id ASC
	LIMIT $3`

// ClicksSince returns up to limit clicks past the (since, afterID) position.
func (e *Extractor) ClicksSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]domain.Click, error) {
	rows, err := e.pool.Query(ctx, clicksSinceQuery, since, afterID, limit)
	if err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}
	defer rows.Close()

	var out []domain.Click
	for rows.Next() {
		var cl domain.Click
		if err := rows.Scan(&cl.ID, &cl.CampaignID, &cl.CreatedAt); err != nil {
			return nil, &domain.ConnectionError{System: "postgres", Err: err}
		}
		out = append(out, cl)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ConnectionError{System: "postgres", Err: err}
	}
	return out, nil
}
