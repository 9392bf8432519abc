package calendar

import (
	"sync"
	"testing"

	"github.com/ledgerpulse/go-forecaster/timeseries"
	"github.com/rickar/cal/v2/us"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusinessDays(t *testing.T) {
	testData := map[string]struct {
		cal      *BusinessCalendar
		month    string
		expected int
	}{
		"weekends only december": {
			cal:      New(),
			month:    "2024-12",
			expected: 22,
		},
		"us december drops christmas": {
			cal:      NewUS(),
			month:    "2024-12",
			expected: 21,
		},
		"leap february": {
			cal:      New(),
			month:    "2024-02",
			expected: 21,
		},
		"us february drops presidents day": {
			cal:      NewUS(),
			month:    "2024-02",
			expected: 20,
		},
		"single holiday": {
			cal:      New(us.ChristmasDay),
			month:    "2025-12",
			expected: 22,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			m := timeseries.MustParseMonth(td.month)
			assert.Equal(t, td.expected, td.cal.BusinessDays(m))
			// second call is served from the cache
			assert.Equal(t, td.expected, td.cal.BusinessDays(m))
		})
	}
}

func TestNormalizeAndScale(t *testing.T) {
	c := New()
	ts, err := timeseries.New("rev", "Revenue", map[string]float64{
		"2024-12": 2200,
		"2024-02": 0,
	})
	require.NoError(t, err)

	normalized := c.Normalize(ts)
	dec := timeseries.MustParseMonth("2024-12")
	assert.InDelta(t, 100.0, normalized.Values[dec], 1e-9)
	assert.Equal(t, 0.0, normalized.Values[timeseries.MustParseMonth("2024-02")])
	assert.InDelta(t, 100.0, normalized.Total, 1e-9)

	// the input is left untouched
	assert.Equal(t, 2200.0, ts.Values[dec])

	assert.InDelta(t, 2200.0, c.Scale(dec, 100), 1e-9)
}

func TestBusinessDaysConcurrent(t *testing.T) {
	c := NewUS()
	start := timeseries.MustParseMonth("2024-01")
	want := New(us.Holidays...)

	var wg sync.WaitGroup
	got := make([][]int, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, m := range timeseries.Range(start, 24) {
				got[i] = append(got[i], c.BusinessDays(m))
			}
		}(i)
	}
	wg.Wait()

	for _, days := range got {
		require.Len(t, days, 24)
		for j, m := range timeseries.Range(start, 24) {
			assert.Equal(t, want.BusinessDays(m), days[j])
		}
	}
}
