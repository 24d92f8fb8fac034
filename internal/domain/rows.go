package domain

import "time"

// AdvertiserRow is a versioned dimension row in analytics.dim_advertiser.
// The warehouse collapses rows sharing advertiser_id to the one with the
// highest updated_at on merge; writers only ever append.
type AdvertiserRow struct {
	AdvertiserID int64     `ch:"advertiser_id"`
	Name         string    `ch:"name"`
	IsDeleted    uint8     `ch:"is_deleted"`
	UpdatedAt    time.Time `ch:"updated_at"`
	CreatedAt    time.Time `ch:"created_at"`
}

// CampaignRow is a versioned dimension row in analytics.dim_campaign.
type CampaignRow struct {
	CampaignID   int64     `ch:"campaign_id"`
	Name         string    `ch:"name"`
	Bid          float64   `ch:"bid"`
	Budget       float64   `ch:"budget"`
	StartDate    time.Time `ch:"start_date"`
	EndDate      time.Time `ch:"end_date"`
	AdvertiserID int64     `ch:"advertiser_id"`
	IsDeleted    uint8     `ch:"is_deleted"`
	UpdatedAt    time.Time `ch:"updated_at"`
	CreatedAt    time.Time `ch:"created_at"`
}

// ImpressionRow is an append-only fact row in analytics.fact_impressions.
type ImpressionRow struct {
	ImpressionID int64     `ch:"impression_id"`
	CampaignID   int64     `ch:"campaign_id"`
	EventDate    time.Time `ch:"event_date"`
	EventTime    time.Time `ch:"event_time"`
	CreatedAt    time.Time `ch:"created_at"`
}

// ClickRow is an append-only fact row in analytics.fact_clicks.
type ClickRow struct {
	ClickID    int64     `ch:"click_id"`
	CampaignID int64     `ch:"campaign_id"`
	EventDate  time.Time `ch:"event_date"`
	EventTime  time.Time `ch:"event_time"`
	CreatedAt  time.Time `ch:"created_at"`
}
