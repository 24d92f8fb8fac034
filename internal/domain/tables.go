package domain

// Source table identifiers, as they appear both in the transactional store
// and in the last segment of each Debezium topic name.
const (
	TableAdvertiser  = "advertiser"
	TableCampaign    = "campaign"
	TableImpressions = "impressions"
	TableClicks      = "clicks"
)

// DimensionTables lists the slowly-changing entity tables, in the order the
// batch pipeline must sync them. Facts reference dimension ids, so dimensions
// always load first within a run.
var DimensionTables = []string{TableAdvertiser, TableCampaign}

// FactTables lists the append-only event tables.
var FactTables = []string{TableImpressions, TableClicks}
