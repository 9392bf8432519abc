package forecast

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ledgerpulse/go-forecaster/seasonal"
	"github.com/ledgerpulse/go-forecaster/timeseries"
)

// Result holds the projection of a single entity along with the inputs that shaped it.
type Result struct {
	EntityID string           `json:"entity_id"`
	Start    timeseries.Month `json:"start"`
	Horizon  int              `json:"horizon"`

	// Forecast holds the projected value of every reported month.
	Forecast timeseries.Values `json:"forecast"`

	// CMGR is the growth rate used for the projection, ComputedCMGR the one derived from history.
	CMGR           float64 `json:"cmgr"`
	ComputedCMGR   float64 `json:"computed_cmgr"`
	CMGROverridden bool    `json:"cmgr_overridden"`

	Patterns     seasonal.Patterns  `json:"patterns"`
	LastObserved timeseries.Month   `json:"last_observed"`
	Overridden   []timeseries.Month `json:"overridden,omitempty"`
}

// Empty reports whether nothing could be forecast.
func (r *Result) Empty() bool {
	return r == nil || len(r.Forecast) == 0
}

// Months returns the forecast months in ascending order.
func (r *Result) Months() []timeseries.Month {
	if r == nil {
		return nil
	}
	return r.Forecast.Months()
}

// Total returns the sum of all forecast values.
func (r *Result) Total() float64 {
	if r == nil {
		return 0
	}
	return r.Forecast.Sum()
}

// TablePrint writes a human readable summary of the result.
func (r *Result) TablePrint(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sForecast: %s\n", prefix, indentExpand(indent, 0), r.EntityID); err != nil {
		return err
	}
	if r.Empty() {
		_, err := fmt.Fprintf(w, "%s%sinsufficient history\n", prefix, indentExpand(indent, 1))
		return err
	}

	overridden := ""
	if r.CMGROverridden {
		overridden = fmt.Sprintf(" (computed %.2f%%)", r.ComputedCMGR*100)
	}
	if _, err := fmt.Fprintf(w, "%s%sCMGR: %.2f%%%s    Last Observed: %s\n",
		prefix, indentExpand(indent, 1),
		r.CMGR*100, overridden, r.LastObserved,
	); err != nil {
		return err
	}

	pinned := make(map[timeseries.Month]struct{}, len(r.Overridden))
	for _, m := range r.Overridden {
		pinned[m] = struct{}{}
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sMonth\tValue\tSource\t\n", prefix, indentExpand(indent, 1)); err != nil {
		return err
	}
	for _, m := range r.Months() {
		src := "model"
		if _, exists := pinned[m]; exists {
			src = "override"
		}
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%.2f\t%s\t\n",
			prefix, indentExpand(indent, 1),
			m, r.Forecast[m], src); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

func indentExpand(indent string, growth int) string {
	out := make([]byte, 0, len(indent)*growth)
	for i := 0; i < growth; i++ {
		out = append(out, indent...)
	}
	return string(out)
}
