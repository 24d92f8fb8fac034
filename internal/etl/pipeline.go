package etl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
	"github.com/samuelTyh/clickhouse-data-pipeline/internal/watermark"
)

// State is the stage a sync run is currently in.
type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateLoading      State = "loading"
	StateCommitting   State = "committing"
	StateFailed       State = "failed"
)

// Status is a snapshot of the pipeline for the ops endpoint.
type Status struct {
	State       State     `json:"state"`
	LastRunID   string    `json:"last_run_id"`
	LastRunAt   time.Time `json:"last_run_at"`
	LastError   string    `json:"last_error,omitempty"`
	RowsSynced  int64     `json:"rows_synced"`
	CyclesTotal int64     `json:"cycles_total"`
}

// Pipeline runs extract-transform-load table by table, dimensions before
// facts, advancing the watermark one confirmed page at a time. Within a run
// the page position is the composite (cursor, id) of the last loaded row, so
// timestamp ties spanning a page boundary are never skipped. A failure at
// any stage aborts the run with the watermark untouched beyond the pages
// already confirmed; the next tick replays from there.
type Pipeline struct {
	extractor  Extractor
	loader     RowLoader
	watermarks watermark.Store
	pageSize   int
	log        *zap.Logger

	mu     sync.Mutex
	status Status
}

func NewPipeline(extractor Extractor, loader RowLoader, watermarks watermark.Store, pageSize int, log *zap.Logger) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		loader:     loader,
		watermarks: watermarks,
		pageSize:   pageSize,
		log:        log,
		status:     Status{State: StateIdle},
	}
}

// Status returns a snapshot of the pipeline state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.status.State = s
	p.mu.Unlock()
}

// RunCycle executes one full sync run. Dimension tables sync before fact
// tables so fact rows never land ahead of the entities they reference.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	runID := uuid.NewString()
	log := p.log.With(zap.String("run_id", runID))

	p.mu.Lock()
	p.status.LastRunID = runID
	p.status.LastRunAt = time.Now().UTC()
	p.status.CyclesTotal++
	p.mu.Unlock()

	log.Info("Starting sync cycle")

	syncs := []struct {
		table string
		run   func(context.Context) (int, error)
	}{
		{domain.TableAdvertiser, p.syncAdvertisers},
		{domain.TableCampaign, p.syncCampaigns},
		{domain.TableImpressions, p.syncImpressions},
		{domain.TableClicks, p.syncClicks},
	}

	var total int
	for _, s := range syncs {
		count, err := s.run(ctx)
		total += count
		if err != nil {
			p.fail(err)
			log.Error("Sync cycle failed, will retry from last confirmed watermark",
				zap.String("table", s.table),
				zap.Error(err))
			return fmt.Errorf("sync %s: %w", s.table, err)
		}
		if count > 0 {
			log.Info("Synced table",
				zap.String("table", s.table),
				zap.Int("rows", count))
		}
	}

	p.mu.Lock()
	p.status.State = StateIdle
	p.status.LastError = ""
	p.status.RowsSynced += int64(total)
	p.mu.Unlock()

	log.Info("Sync cycle completed successfully", zap.Int("rows", total))
	return nil
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	p.status.State = StateFailed
	p.status.LastError = err.Error()
	p.mu.Unlock()
}

// cursorFor resolves the starting point for a table. Nil watermark means the
// table has never been synced: start from the zero time for a full load.
func (p *Pipeline) cursorFor(ctx context.Context, table string) (time.Time, error) {
	wm, err := p.watermarks.Get(ctx, table)
	if err != nil {
		return time.Time{}, err
	}
	if wm == nil {
		p.log.Info("No watermark found, performing full initial load",
			zap.String("table", table))
		return time.Time{}, nil
	}
	return *wm, nil
}

// rowCursor is the change cursor of a dimension row: updated_at when set,
// else created_at. Matches GREATEST(updated_at, created_at) in extraction.
func rowCursor(updatedAt, createdAt time.Time) time.Time {
	if createdAt.After(updatedAt) {
		return createdAt
	}
	return updatedAt
}

func (p *Pipeline) syncAdvertisers(ctx context.Context) (int, error) {
	since, err := p.cursorFor(ctx, domain.TableAdvertiser)
	if err != nil {
		return 0, err
	}

	var afterID int64
	total := 0
	for {
		p.setState(StateExtracting)
		rows, err := p.extractor.AdvertisersSince(ctx, since, afterID, p.pageSize)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			break
		}

		p.setState(StateTransforming)
		out := make([]domain.AdvertiserRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, TransformAdvertiser(r))
		}
		// Rows are ordered by (cursor, id): the last row is the page position.
		last := rows[len(rows)-1]
		maxCursor := rowCursor(last.UpdatedAt, last.CreatedAt)

		p.setState(StateLoading)
		n, err := p.loader.LoadAdvertisers(ctx, out)
		if err != nil {
			return total, err
		}

		p.setState(StateCommitting)
		if err := p.watermarks.Set(ctx, domain.TableAdvertiser, maxCursor); err != nil {
			return total, err
		}

		total += n
		since, afterID = maxCursor, last.ID
		if len(rows) < p.pageSize {
			break
		}
	}
	return total, nil
}

func (p *Pipeline) syncCampaigns(ctx context.Context) (int, error) {
	since, err := p.cursorFor(ctx, domain.TableCampaign)
	if err != nil {
		return 0, err
	}

	var afterID int64
	total := 0
	for {
		p.setState(StateExtracting)
		rows, err := p.extractor.CampaignsSince(ctx, since, afterID, p.pageSize)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			break
		}

		p.setState(StateTransforming)
		out := make([]domain.CampaignRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, TransformCampaign(r))
		}
		last := rows[len(rows)-1]
		maxCursor := rowCursor(last.UpdatedAt, last.CreatedAt)

		p.setState(StateLoading)
		n, err := p.loader.LoadCampaigns(ctx, out)
		if err != nil {
			return total, err
		}

		p.setState(StateCommitting)
		if err := p.watermarks.Set(ctx, domain.TableCampaign, maxCursor); err != nil {
			return total, err
		}

		total += n
		since, afterID = maxCursor, last.ID
		if len(rows) < p.pageSize {
			break
		}
	}
	return total, nil
}

func (p *Pipeline) syncImpressions(ctx context.Context) (int, error) {
	since, err := p.cursorFor(ctx, domain.TableImpressions)
	if err != nil {
		return 0, err
	}

	var afterID int64
	total := 0
	for {
		p.setState(StateExtracting)
		rows, err := p.extractor.ImpressionsSince(ctx, since, afterID, p.pageSize)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			break
		}

		p.setState(StateTransforming)
		out := make([]domain.ImpressionRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, TransformImpression(r))
		}
		last := rows[len(rows)-1]
		maxCursor := last.CreatedAt

		p.setState(StateLoading)
		n, err := p.loader.LoadImpressions(ctx, out)
		if err != nil {
			return total, err
		}

		p.setState(StateCommitting)
		if err := p.watermarks.Set(ctx, domain.TableImpressions, maxCursor); err != nil {
			return total, err
		}

		total += n
		since, afterID = maxCursor, last.ID
		if len(rows) < p.pageSize {
			break
		}
	}
	return total, nil
}

func (p *Pipeline) syncClicks(ctx context.Context) (int, error) {
	since, err := p.cursorFor(ctx, domain.TableClicks)
	if err != nil {
		return 0, err
	}

	var afterID int64
	total := 0
	for {
		p.setState(StateExtracting)
		rows, err := p.extractor.ClicksSince(ctx, since, afterID, p.pageSize)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			break
		}

		p.setState(StateTransforming)
		out := make([]domain.ClickRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, TransformClick(r))
		}
		last := rows[len(rows)-1]
		maxCursor := last.CreatedAt

		p.setState(StateLoading)
		n, err := p.loader.LoadClicks(ctx, out)
		if err != nil {
			return total, err
		}

		p.setState(StateCommitting)
		if err := p.watermarks.Set(ctx, domain.TableClicks, maxCursor); err != nil {
			return total, err
		}

		total += n
		since, afterID = maxCursor, last.ID
		if len(rows) < p.pageSize {
			break
		}
	}
	return total, nil
}
