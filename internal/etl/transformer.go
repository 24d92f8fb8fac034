package etl

import (
	"time"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// Pure row mapping from the transactional shape to the analytical shape.
// Deterministic on purpose: both pipelines replay rows under at-least-once
// delivery, and a replayed row must produce a byte-identical version so the
// warehouse collapses it.

// TransformAdvertiser maps an advertiser source row to its dimension shape.
// A zero updated_at falls back to created_at so the version column is never
// the zero time.
func TransformAdvertiser(src domain.Advertiser) domain.AdvertiserRow {
	updatedAt := src.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = src.CreatedAt
	}
	return domain.AdvertiserRow{
		AdvertiserID: src.ID,
		Name:         src.Name,
		UpdatedAt:    updatedAt,
		CreatedAt:    src.CreatedAt,
	}
}

// TransformCampaign maps a campaign source row to its dimension shape.
func TransformCampaign(src domain.Campaign) domain.CampaignRow {
	updatedAt := src.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = src.CreatedAt
	}
	return domain.CampaignRow{
		CampaignID:   src.ID,
		Name:         src.Name,
		Bid:          src.Bid,
		Budget:       src.Budget,
		StartDate:    src.StartDate,
		EndDate:      src.EndDate,
		AdvertiserID: src.AdvertiserID,
		UpdatedAt:    updatedAt,
		CreatedAt:    src.CreatedAt,
	}
}

// TransformImpression maps an impression source row to its fact shape,
// deriving event_date from the event time.
func TransformImpression(src domain.Impression) domain.ImpressionRow {
	eventTime := src.CreatedAt
	return domain.ImpressionRow{
		ImpressionID: src.ID,
		CampaignID:   src.CampaignID,
		EventDate:    truncateToDate(eventTime),
		EventTime:    eventTime,
		CreatedAt:    src.CreatedAt,
	}
}

// TransformClick maps a click source row to its fact shape.
func TransformClick(src domain.Click) domain.ClickRow {
	eventTime := src.CreatedAt
	return domain.ClickRow{
		ClickID:    src.ID,
		CampaignID: src.CampaignID,
		EventDate:  truncateToDate(eventTime),
		EventTime:  eventTime,
		CreatedAt:  src.CreatedAt,
	}
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
