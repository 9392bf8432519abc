package forecast

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustmentsJSON(t *testing.T) {
	adjs := Adjustments{
		CMGROverride{EntityID: "rev", Percent: 5},
		ManualOverride{EntityID: "rev", Month: timeseries.MustParseMonth("2024-09"), Value: 1200},
	}

	out, err := json.Marshal(adjs)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"cmgr_override","entity_id":"rev","value":5},
		{"type":"manual_override","entity_id":"rev","month":"2024-09","value":1200}
	]`, string(out))

	var decoded Adjustments
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, adjs, decoded)
}

func TestAdjustmentsUnmarshalErrors(t *testing.T) {
	testData := map[string]struct {
		input    string
		expected error
	}{
		"unknown type": {
			input:    `[{"type":"seasonal_override","entity_id":"rev","value":1}]`,
			expected: ErrUnknownAdjustment,
		},
		"missing month": {
			input:    `[{"type":"manual_override","entity_id":"rev","value":1}]`,
			expected: ErrAdjustmentNoMonth,
		},
		"bad month": {
			input:    `[{"type":"manual_override","entity_id":"rev","month":"2024-13","value":1}]`,
			expected: timeseries.ErrInvalidMonth,
		},
		"missing entity": {
			input:    `[{"type":"cmgr_override","value":1}]`,
			expected: ErrAdjustmentNoEntity,
		},
		"negative manual": {
			input:    `[{"type":"manual_override","entity_id":"rev","month":"2024-01","value":-3}]`,
			expected: ErrNegativeOverride,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			var adjs Adjustments
			err := json.Unmarshal([]byte(td.input), &adjs)
			require.Error(t, err)
			assert.ErrorIs(t, err, td.expected)
		})
	}
}

func TestAdjustmentsLookup(t *testing.T) {
	sep := timeseries.MustParseMonth("2024-09")
	oct := sep.Add(1)
	adjs := Adjustments{
		CMGROverride{EntityID: "rev", Percent: 5},
		ManualOverride{EntityID: "rev", Month: sep, Value: 10},
		ManualOverride{EntityID: "traffic", Month: sep, Value: 99},
		ManualOverride{EntityID: "rev", Month: oct, Value: 20},
		ManualOverride{EntityID: "rev", Month: sep, Value: 11},
		CMGROverride{EntityID: "rev", Percent: -2.5},
	}

	assert.Len(t, adjs.For("rev"), 5)
	assert.Len(t, adjs.For("traffic"), 1)
	assert.Empty(t, adjs.For("unknown"))

	rate, ok := adjs.CMGR("rev")
	assert.True(t, ok)
	assert.InDelta(t, -0.025, rate, 1e-12)

	_, ok = adjs.CMGR("traffic")
	assert.False(t, ok)

	assert.Equal(t, map[timeseries.Month]float64{sep: 11, oct: 20}, adjs.Manual("rev"))
	assert.Empty(t, adjs.Manual("unknown"))
}
