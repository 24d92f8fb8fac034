package watermark

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// ClickHouseStore persists watermarks in the etl_watermark table, itself a
// ReplacingMergeTree versioned by write time, so Set is a plain append and
// Get reads the latest version per table.
type ClickHouseStore struct {
	conn driver.Conn
	log  *zap.Logger
}

func NewClickHouseStore(conn driver.Conn, log *zap.Logger) *ClickHouseStore {
	return &ClickHouseStore{conn: conn, log: log}
}

func (s *ClickHouseStore) Get(ctx context.Context, table string) (*time.Time, error) {
	row := s.conn.QueryRow(ctx,
		"SELECT cursor FROM etl_watermark FINAL WHERE table_name = ?", table)

	var cursor time.Time
	if err := row.Scan(&cursor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &domain.ConnectionError{System: "clickhouse", Err: err}
	}
	return &cursor, nil
}

// Set advances the cursor for a table. Older cursors are ignored so the
// watermark never moves backwards, even if a run commits out of order.
func (s *ClickHouseStore) Set(ctx context.Context, table string, cursor time.Time) error {
	current, err := s.Get(ctx, table)
	if err != nil {
		return err
	}
	if current != nil && cursor.Before(*current) {
		return nil
	}
	return s.write(ctx, table, cursor)
}

// Force overwrites the cursor regardless of the stored value. Used for
// operator-supplied watermark overrides at startup, e.g. to re-sync a table
// from an earlier point.
func (s *ClickHouseStore) Force(ctx context.Context, table string, cursor time.Time) error {
	s.log.Warn("Forcing watermark override",
		zap.String("table", table),
		zap.Time("cursor", cursor))
	return s.write(ctx, table, cursor)
}

func (s *ClickHouseStore) write(ctx context.Context, table string, cursor time.Time) error {
	err := s.conn.Exec(ctx,
		"INSERT INTO etl_watermark (table_name, cursor, updated_at) VALUES (?, ?, ?)",
		table, cursor, time.Now().UTC())
	if err != nil {
		return &domain.WriteError{Table: "etl_watermark", Err: err}
	}
	return nil
}
