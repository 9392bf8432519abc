package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

var (
	ErrUnknownAdjustment   = errors.New("unknown adjustment type")
	ErrAdjustmentNoEntity  = errors.New("adjustment has no entity id")
	ErrAdjustmentNoMonth   = errors.New("manual override has no month")
	ErrInvalidAdjustValue  = errors.New("adjustment value is not finite")
	ErrNegativeOverride    = errors.New("manual override value is negative")
	ErrCMGROverrideTooLow  = errors.New("cmgr override must be greater than -100 percent")
)

// AdjustmentType discriminates the adjustment variants in serialized form.
type AdjustmentType string

const (
	TypeCMGROverride   AdjustmentType = "cmgr_override"
	TypeManualOverride AdjustmentType = "manual_override"
)

// Adjustment is a caller supplied change to how an entity is forecast. It is implemented by
// CMGROverride and ManualOverride only.
type Adjustment interface {
	Type() AdjustmentType
	Entity() string
	Validate() error
}

// CMGROverride replaces the computed growth rate of an entity for the whole horizon. Percent
// is expressed as a percentage, 5 meaning 5% per month.
type CMGROverride struct {
	EntityID string
	Percent  float64
}

func (c CMGROverride) Type() AdjustmentType { return TypeCMGROverride }
func (c CMGROverride) Entity() string       { return c.EntityID }

// Rate returns the override as a decimal fraction.
func (c CMGROverride) Rate() float64 {
	return c.Percent / 100.0
}

func (c CMGROverride) Validate() error {
	if c.EntityID == "" {
		return ErrAdjustmentNoEntity
	}
	if math.IsNaN(c.Percent) || math.IsInf(c.Percent, 0) {
		return fmt.Errorf("entity %s, %w", c.EntityID, ErrInvalidAdjustValue)
	}
	if c.Percent <= -100 {
		return fmt.Errorf("entity %s has %f, %w", c.EntityID, c.Percent, ErrCMGROverrideTooLow)
	}
	return nil
}

// ManualOverride forces the forecast of one month to an exact value.
type ManualOverride struct {
	EntityID string
	Month    timeseries.Month
	Value    float64
}

func (m ManualOverride) Type() AdjustmentType { return TypeManualOverride }
func (m ManualOverride) Entity() string       { return m.EntityID }

func (m ManualOverride) Validate() error {
	if m.EntityID == "" {
		return ErrAdjustmentNoEntity
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("entity %s at %s, %w", m.EntityID, m.Month, ErrInvalidAdjustValue)
	}
	if m.Value < 0 {
		return fmt.Errorf("entity %s at %s, %w", m.EntityID, m.Month, ErrNegativeOverride)
	}
	return nil
}

// Adjustments is an ordered list of adjustments. When several CMGR overrides target the same
// entity the last one wins, and likewise for manual overrides of the same month.
type Adjustments []Adjustment

// Validate checks every adjustment.
func (a Adjustments) Validate() error {
	for i, adj := range a {
		if adj == nil {
			return fmt.Errorf("adjustment %d is nil, %w", i, ErrUnknownAdjustment)
		}
		if err := adj.Validate(); err != nil {
			return fmt.Errorf("adjustment %d, %w", i, err)
		}
	}
	return nil
}

// For returns the adjustments targeting a single entity.
func (a Adjustments) For(entityID string) Adjustments {
	var res Adjustments
	for _, adj := range a {
		if adj != nil && adj.Entity() == entityID {
			res = append(res, adj)
		}
	}
	return res
}

// CMGR returns the growth rate override of the entity as a decimal fraction.
func (a Adjustments) CMGR(entityID string) (float64, bool) {
	var rate float64
	var found bool
	for _, adj := range a {
		if o, ok := adj.(CMGROverride); ok && o.EntityID == entityID {
			rate = o.Rate()
			found = true
		}
	}
	return rate, found
}

// Manual returns the manual overrides of the entity keyed by month.
func (a Adjustments) Manual(entityID string) map[timeseries.Month]float64 {
	res := make(map[timeseries.Month]float64)
	for _, adj := range a {
		if o, ok := adj.(ManualOverride); ok && o.EntityID == entityID {
			res[o.Month] = o.Value
		}
	}
	return res
}

type adjustmentJSON struct {
	Type     AdjustmentType `json:"type"`
	EntityID string         `json:"entity_id"`
	Month    string         `json:"month,omitempty"`
	Value    float64        `json:"value"`
}

// MarshalJSON encodes the adjustments as a list of objects tagged by type.
func (a Adjustments) MarshalJSON() ([]byte, error) {
	out := make([]adjustmentJSON, 0, len(a))
	for _, adj := range a {
		switch v := adj.(type) {
		case CMGROverride:
			out = append(out, adjustmentJSON{Type: TypeCMGROverride, EntityID: v.EntityID, Value: v.Percent})
		case ManualOverride:
			out = append(out, adjustmentJSON{Type: TypeManualOverride, EntityID: v.EntityID, Month: v.Month.String(), Value: v.Value})
		default:
			return nil, fmt.Errorf("%T, %w", adj, ErrUnknownAdjustment)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a list of adjustments tagged by type.
func (a *Adjustments) UnmarshalJSON(data []byte) error {
	var raw []adjustmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	res := make(Adjustments, 0, len(raw))
	for i, r := range raw {
		var adj Adjustment
		switch r.Type {
		case TypeCMGROverride:
			adj = CMGROverride{EntityID: r.EntityID, Percent: r.Value}
		case TypeManualOverride:
			if r.Month == "" {
				return fmt.Errorf("adjustment %d, %w", i, ErrAdjustmentNoMonth)
			}
			m, err := timeseries.ParseMonth(r.Month)
			if err != nil {
				return fmt.Errorf("adjustment %d, %w", i, err)
			}
			adj = ManualOverride{EntityID: r.EntityID, Month: m, Value: r.Value}
		default:
			return fmt.Errorf("adjustment %d has type %q, %w", i, r.Type, ErrUnknownAdjustment)
		}
		if err := adj.Validate(); err != nil {
			return fmt.Errorf("adjustment %d, %w", i, err)
		}
		res = append(res, adj)
	}
	*a = res
	return nil
}
