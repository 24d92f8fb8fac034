package domain

import "time"

// Advertiser is a raw advertiser row as read from the transactional store
// or decoded from a change event image.
type Advertiser struct {
	ID        int64
	Name      string
	UpdatedAt time.Time
	CreatedAt time.Time
}

// Campaign is a raw campaign row. AdvertiserID is carried as-is; referential
// integrity is a source-side invariant, not enforced downstream.
type Campaign struct {
	ID           int64
	Name         string
	Bid          float64
	Budget       float64
	StartDate    time.Time
	EndDate      time.Time
	AdvertiserID int64
	UpdatedAt    time.Time
	CreatedAt    time.Time
}

// Impression is a raw impression event row.
type Impression struct {
	ID         int64
	CampaignID int64
	CreatedAt  time.Time
}

// Click is a raw click event row.
type Click struct {
	ID         int64
	CampaignID int64
	CreatedAt  time.Time
}
