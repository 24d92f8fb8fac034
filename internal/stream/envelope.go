package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samuelTyh/clickhouse-data-pipeline/internal/domain"
)

// Operation is the Debezium change type tag.
type Operation string

const (
	OpCreate Operation = "c"
	OpRead   Operation = "r" // snapshot rows, handled like creates
	OpUpdate Operation = "u"
	OpDelete Operation = "d"
)

// Source carries the origin metadata of a change event.
type Source struct {
	Table string `json:"table"`
	TsMs  int64  `json:"ts_ms"`
}

// Envelope is a decoded Debezium change event: the operation, the row images
// around it, and where it came from. Before/After stay raw until the
// per-table decoder gives them a type.
type Envelope struct {
	Op     Operation       `json:"op"`
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
	Source Source          `json:"source"`
}

// Timestamp returns the source commit time of the event.
func (e *Envelope) Timestamp() time.Time {
	return time.UnixMilli(e.Source.TsMs).UTC()
}

// Image returns the row image the operation acts on: the after-image for
// creates and updates, the before-image for deletes.
func (e *Envelope) Image() json.RawMessage {
	if e.Op == OpDelete {
		return e.Before
	}
	return e.After
}

// DecodeEnvelope parses raw broker message bytes into a typed envelope,
// validating the operation tag and the presence of the required row image.
func DecodeEnvelope(value []byte) (*Envelope, error) {
	if len(value) == 0 {
		return nil, &domain.DecodeError{Err: fmt.Errorf("empty message body")}
	}

	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, &domain.DecodeError{Err: fmt.Errorf("unmarshal envelope: %w", err)}
	}

	switch env.Op {
	case OpCreate, OpRead, OpUpdate:
		if !hasImage(env.After) {
			return nil, &domain.DecodeError{Err: fmt.Errorf("operation %q without after-image", env.Op)}
		}
	case OpDelete:
		if !hasImage(env.Before) {
			return nil, &domain.DecodeError{Err: fmt.Errorf("delete without before-image")}
		}
	default:
		return nil, &domain.DecodeError{Err: fmt.Errorf("unknown operation %q", env.Op)}
	}

	if env.Source.Table == "" {
		return nil, &domain.DecodeError{Err: fmt.Errorf("missing source table")}
	}

	return &env, nil
}

func hasImage(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// Debezium value encodings with JSON schemas disabled: timestamps arrive as
// epoch microseconds, dates as epoch days, numerics as floats.

type advertiserImage struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UpdatedAt int64  `json:"updated_at"`
	CreatedAt int64  `json:"created_at"`
}

type campaignImage struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Bid          float64 `json:"bid"`
	Budget       float64 `json:"budget"`
	StartDate    int32   `json:"start_date"`
	EndDate      int32   `json:"end_date"`
	AdvertiserID int64   `json:"advertiser_id"`
	UpdatedAt    int64   `json:"updated_at"`
	CreatedAt    int64   `json:"created_at"`
}

type factImage struct {
	ID         int64 `json:"id"`
	CampaignID int64 `json:"campaign_id"`
	CreatedAt  int64 `json:"created_at"`
}

func decodeAdvertiserImage(raw json.RawMessage) (domain.Advertiser, error) {
	var img advertiserImage
	if err := json.Unmarshal(raw, &img); err != nil {
		return domain.Advertiser{}, &domain.DecodeError{Err: fmt.Errorf("advertiser image: %w", err)}
	}
	return domain.Advertiser{
		ID:        img.ID,
		Name:      img.Name,
		UpdatedAt: microsToTime(img.UpdatedAt),
		CreatedAt: microsToTime(img.CreatedAt),
	}, nil
}

func decodeCampaignImage(raw json.RawMessage) (domain.Campaign, error) {
	var img campaignImage
	if err := json.Unmarshal(raw, &img); err != nil {
		return domain.Campaign{}, &domain.DecodeError{Err: fmt.Errorf("campaign image: %w", err)}
	}
	return domain.Campaign{
		ID:           img.ID,
		Name:         img.Name,
		Bid:          img.Bid,
		Budget:       img.Budget,
		StartDate:    daysToDate(img.StartDate),
		EndDate:      daysToDate(img.EndDate),
		AdvertiserID: img.AdvertiserID,
		UpdatedAt:    microsToTime(img.UpdatedAt),
		CreatedAt:    microsToTime(img.CreatedAt),
	}, nil
}

func decodeImpressionImage(raw json.RawMessage) (domain.Impression, error) {
	var img factImage
	if err := json.Unmarshal(raw, &img); err != nil {
		return domain.Impression{}, &domain.DecodeError{Err: fmt.Errorf("impression image: %w", err)}
	}
	return domain.Impression{
		ID:         img.ID,
		CampaignID: img.CampaignID,
		CreatedAt:  microsToTime(img.CreatedAt),
	}, nil
}

func decodeClickImage(raw json.RawMessage) (domain.Click, error) {
	var img factImage
	if err := json.Unmarshal(raw, &img); err != nil {
		return domain.Click{}, &domain.DecodeError{Err: fmt.Errorf("click image: %w", err)}
	}
	return domain.Click{
		ID:         img.ID,
		CampaignID: img.CampaignID,
		CreatedAt:  microsToTime(img.CreatedAt),
	}, nil
}

// microsToTime treats zero as unset rather than the epoch, so a missing
// timestamp field maps to the zero time and downstream fallbacks apply.
func microsToTime(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func daysToDate(days int32) time.Time {
	return time.Unix(0, 0).UTC().AddDate(0, 0, int(days))
}
