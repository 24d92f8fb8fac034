package clickhouse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func statementFor(t *testing.T, statements []string, object string) string {
	t.Helper()
	for _, stmt := range statements {
		if strings.Contains(stmt, object) {
			return stmt
		}
	}
	t.Fatalf("no statement defines %s", object)
	return ""
}

func TestSchema_DimensionsAreVersionedByUpdatedAt(t *testing.T) {
	for _, table := range []string{"dim_advertiser", "dim_campaign"} {
		stmt := statementFor(t, schemaStatements, table)
		assert.Contains(t, stmt, "ReplacingMergeTree(updated_at)")
		assert.Contains(t, stmt, "is_deleted UInt8")
	}
}

func TestSchema_DailyEventsViewCoversBothFactTables(t *testing.T) {
	stmt := statementFor(t, viewStatements, "v_daily_events")

	assert.Contains(t, stmt, "fact_impressions")
	assert.Contains(t, stmt, "fact_clicks")
	assert.Contains(t, stmt, "AS impressions")
	assert.Contains(t, stmt, "AS clicks")
}
