package clickhouse

// Versioned dimension tables: ReplacingMergeTree keyed by entity id with
// updated_at as the version column. Both pipelines append versions; the
// engine keeps the newest per id on merge. is_deleted carries tombstones.
//
// Fact tables are plain MergeTree: rows are immutable once written and only
// ever created, by either pipeline.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dim_advertiser (
		advertiser_id Int64,
		name String,
		is_deleted UInt8 DEFAULT 0,
		updated_at DateTime64(6),
		created_at DateTime64(6)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY advertiser_id
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS dim_campaign (
		campaign_id Int64,
		name String,
		bid Float64,
		budget Float64,
		start_date Date,
		end_date Date,
		advertiser_id Int64,
		is_deleted UInt8 DEFAULT 0,
		updated_at DateTime64(6),
		created_at DateTime64(6)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY campaign_id
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS fact_impressions (
		impression_id Int64,
		campaign_id Int64,
		event_date Date,
		event_time DateTime64(6),
		created_at DateTime64(6)
	) ENGINE = MergeTree
	ORDER BY (event_date, campaign_id, impression_id)
	PARTITION BY toYYYYMM(event_date)
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS fact_clicks (
		click_id Int64,
		campaign_id Int64,
		event_date Date,
		event_time DateTime64(6),
		created_at DateTime64(6)
	) ENGINE = MergeTree
	ORDER BY (event_date, campaign_id, click_id)
	PARTITION BY toYYYYMM(event_date)
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS etl_watermark (
		table_name String,
		cursor DateTime64(6),
		updated_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY table_name`,
}

// Read-side KPI views over the latest dimension versions. FINAL forces the
// replacing merge at query time; tombstoned campaigns are filtered out.
var viewStatements = []string{
	`CREATE VIEW IF NOT EXISTS v_campaign_performance AS
	SELECT
		c.campaign_id AS campaign_id,
		c.name AS campaign_name,
		c.advertiser_id AS advertiser_id,
		countDistinct(i.impression_id) AS impressions,
		countDistinct(cl.click_id) AS clicks,
		if(impressions > 0, clicks / impressions, 0) AS ctr
	FROM dim_campaign c FINAL
	LEFT JOIN fact_impressions i ON i.campaign_id = c.campaign_id
	LEFT JOIN fact_clicks cl ON cl.campaign_id = c.campaign_id
	WHERE c.is_deleted = 0
	GROUP BY c.campaign_id, c.name, c.advertiser_id`,

	`CREATE VIEW IF NOT EXISTS v_daily_events AS
	SELECT
		event_date,
		campaign_id,
		uniqExactIf(event_id, event_type = 'impression') AS impressions,
		uniqExactIf(event_id, event_type = 'click') AS clicks
	FROM (
		SELECT event_date, campaign_id, impression_id AS event_id, 'impression' AS event_type
		FROM fact_impressions
		UNION ALL
		SELECT event_date, campaign_id, click_id AS event_id, 'click' AS event_type
		FROM fact_clicks
	)
	GROUP BY event_date, campaign_id`,
}
