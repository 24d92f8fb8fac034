package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// MockWriter is a mock implementation of warehouse.Writer
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) InsertAdvertisers(ctx context.Context, rows []domain.AdvertiserRow) (int, error) {
	args := m.Called(ctx, rows)
	return args.Int(0), args.Error(1)
}

func (m *MockWriter) InsertCampaigns(ctx context.Context, rows []domain.CampaignRow) (int, error) {
	args := m.Called(ctx, rows)
	return args.Int(0), args.Error(1)
}

func (m *MockWriter) InsertImpressions(ctx context.Context, rows []domain.ImpressionRow) (int, error) {
	args := m.Called(ctx, rows)
	return args.Int(0), args.Error(1)
}

func (m *MockWriter) InsertClicks(ctx context.Context, rows []domain.ClickRow) (int, error) {
	args := m.Called(ctx, rows)
	return args.Int(0), args.Error(1)
}

func (m *MockWriter) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockWriter) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func campaignUpdateEnvelope(t *testing.T) *Envelope {
	t.Helper()
	env, err := DecodeEnvelope([]byte(`{
		"op": "u",
		"before": null,
		"after": {
			"id": 5, "name": "spring-sale", "bid": 2.5, "budget": 1000.0,
			"start_date": 20148, "end_date": 20179, "advertiser_id": 7,
			"updated_at": 1740830400000000, "created_at": 1740744000000000
		},
		"source": {"table": "campaign", "ts_ms": 1740830400123}
	}`))
	assert.NoError(t, err)
	return env
}

func TestProcessor_Process_UpdateTwiceIsIdempotent(t *testing.T) {
	writer := new(MockWriter)
	processor := NewProcessor(writer, zap.NewNop())
	env := campaignUpdateEnvelope(t)

	var captured [][]domain.CampaignRow
	writer.On("InsertCampaigns", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = append(captured, args.Get(1).([]domain.CampaignRow))
		}).
		Return(1, nil).Twice()

	assert.NoError(t, processor.Process(context.Background(), env))
	assert.NoError(t, processor.Process(context.Background(), env))

	// Replaying the same event appends a byte-identical version: same id,
	// same version column, so the warehouse collapses them to one row.
	assert.Len(t, captured, 2)
	assert.Equal(t, captured[0], captured[1])
	assert.Equal(t, int64(5), captured[0][0].CampaignID)
	assert.Equal(t, 2.5, captured[0][0].Bid)
	writer.AssertExpectations(t)
}

func TestProcessor_Process_DeleteEmitsTombstone(t *testing.T) {
	writer := new(MockWriter)
	processor := NewProcessor(writer, zap.NewNop())

	env, err := DecodeEnvelope([]byte(`{
		"op": "d",
		"before": {"id": 7, "name": "Acme Media", "updated_at": 1740830400000000, "created_at": 1740744000000000},
		"after": null,
		"source": {"table": "advertiser", "ts_ms": 1740917000500}
	}`))
	assert.NoError(t, err)

	var row domain.AdvertiserRow
	writer.On("InsertAdvertisers", mock.Anything, mock.MatchedBy(func(rows []domain.AdvertiserRow) bool {
		return len(rows) == 1
	})).
		Run(func(args mock.Arguments) {
			row = args.Get(1).([]domain.AdvertiserRow)[0]
		}).
		Return(1, nil).Once()

	assert.NoError(t, processor.Process(context.Background(), env))

	// Logical delete: a flagged version stamped at the event time, never a
	// physical removal.
	assert.Equal(t, uint8(1), row.IsDeleted)
	assert.Equal(t, int64(7), row.AdvertiserID)
	assert.Equal(t, time.UnixMilli(1740917000500).UTC(), row.UpdatedAt)
	writer.AssertExpectations(t)
}

func TestProcessor_Process_CreateWithoutUpdatedAtUsesCreatedAt(t *testing.T) {
	writer := new(MockWriter)
	processor := NewProcessor(writer, zap.NewNop())

	env, err := DecodeEnvelope([]byte(`{
		"op": "c",
		"before": null,
		"after": {"id": 7, "name": "Acme Media", "created_at": 1740830400000000},
		"source": {"table": "advertiser", "ts_ms": 1740830400123}
	}`))
	assert.NoError(t, err)

	var row domain.AdvertiserRow
	writer.On("InsertAdvertisers", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			row = args.Get(1).([]domain.AdvertiserRow)[0]
		}).
		Return(1, nil).Once()

	assert.NoError(t, processor.Process(context.Background(), env))

	// A row inserted before its first update carries created_at as the
	// version column, never the zero time or the epoch.
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, created, row.UpdatedAt)
	assert.Equal(t, created, row.CreatedAt)
	writer.AssertExpectations(t)
}

func TestProcessor_Process_FactDeleteIgnored(t *testing.T) {
	writer := new(MockWriter)
	processor := NewProcessor(writer, zap.NewNop())

	env, err := DecodeEnvelope([]byte(`{
		"op": "d",
		"before": {"id": 100, "campaign_id": 5, "created_at": 1740830400000000},
		"after": null,
		"source": {"table": "impressions", "ts_ms": 1740830400123}
	}`))
	assert.NoError(t, err)

	assert.NoError(t, processor.Process(context.Background(), env))
	writer.AssertNotCalled(t, "InsertImpressions", mock.Anything, mock.Anything)
}

func TestProcessor_Process_ImpressionCreate(t *testing.T) {
	writer := new(MockWriter)
	processor := NewProcessor(writer, zap.NewNop())

	env, err := DecodeEnvelope([]byte(`{
		"op": "c",
		"before": null,
		"after": {"id": 100, "campaign_id": 5, "created_at": 1740830400000000},
		"source": {"table": "impressions", "ts_ms": 1740830400123}
	}`))
	assert.NoError(t, err)

	writer.On("InsertImpressions", mock.Anything, mock.MatchedBy(func(rows []domain.ImpressionRow) bool {
		return len(rows) == 1 &&
			rows[0].ImpressionID == 100 &&
			rows[0].EventDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	})).Return(1, nil).Once()

	assert.NoError(t, processor.Process(context.Background(), env))
	writer.AssertExpectations(t)
}

func TestProcessor_Process_UnknownTable(t *testing.T) {
	writer := new(MockWriter)
	processor := NewProcessor(writer, zap.NewNop())

	env, err := DecodeEnvelope([]byte(`{
		"op": "c",
		"after": {"id": 1},
		"source": {"table": "budgets", "ts_ms": 1}
	}`))
	assert.NoError(t, err)

	procErr := processor.Process(context.Background(), env)

	var decodeErr *domain.DecodeError
	assert.True(t, errors.As(procErr, &decodeErr))
}

func TestProcessor_Process_WriteFailurePropagates(t *testing.T) {
	writer := new(MockWriter)
	processor := NewProcessor(writer, zap.NewNop())
	env := campaignUpdateEnvelope(t)

	writeErr := &domain.WriteError{Table: "dim_campaign", Err: errors.New("too many parts")}
	writer.On("InsertCampaigns", mock.Anything, mock.Anything).Return(0, writeErr).Once()

	err := processor.Process(context.Background(), env)

	var wErr *domain.WriteError
	assert.True(t, errors.As(err, &wErr))
	writer.AssertExpectations(t)
}
