// Package translator mechanically converts a validated intent into the JSON
// query document the analytics engine executes. Translation is a pure
// function: no catalog access, no clock access except the caller-supplied
// now, and identical input always yields byte-identical output.
package translator

import (
	"fmt"
	"strings"
	"time"

	"nlq/internal/intent"
)

const (
	// DefaultLimit caps result rows when the intent does not ask for a limit.
	DefaultLimit = 1000
	// DefaultTimezone is attached to every query.
	DefaultTimezone = "Asia/Kolkata"
)

// Error reports an upstream contract violation: a field reached the
// translator without being normalized to a canonical schema id. This is a
// bug in the validator, never a user error.
type Error struct {
	Field string
	Value string
}

func (e *Error) Error() string {
	return fmt.Sprintf("translator: non-normalized %s %q (expected a schema id)", e.Field, e.Value)
}

// Filter is a single predicate in the query document.
type Filter struct {
	Member   string   `json:"member"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
}

// TimeDimension is the query document's time axis: which field, bucketed how,
// over which concrete date range.
type TimeDimension struct {
	Dimension   string   `json:"dimension"`
	Granularity string   `json:"granularity,omitempty"`
	DateRange   []string `json:"dateRange,omitempty"`
}

// Query is the JSON document sent to the analytics engine.
type Query struct {
	Measures       []string          `json:"measures"`
	Dimensions     []string          `json:"dimensions,omitempty"`
	Filters        []Filter          `json:"filters,omitempty"`
	TimeDimensions []TimeDimension   `json:"timeDimensions,omitempty"`
	Order          map[string]string `json:"order"`
	Limit          int               `json:"limit"`
	Timezone       string            `json:"timezone"`
}

// Build translates a validated intent into a query document. now anchors
// named time windows; passing the same now always reproduces the same query.
func Build(in intent.Intent, now time.Time) (Query, error) {
	if err := requireNormalized("metric", in.Metric); err != nil {
		return Query{}, err
	}

	q := Query{
		Measures: []string{in.Metric},
		Order:    map[string]string{in.Metric: "desc"},
		Limit:    DefaultLimit,
		Timezone: DefaultTimezone,
	}
	if in.Limit > 0 {
		q.Limit = in.Limit
	}

	for _, dim := range in.GroupBy {
		if err := requireNormalized("dimension", dim); err != nil {
			return Query{}, err
		}
		q.Dimensions = append(q.Dimensions, dim)
	}

	for _, f := range in.Filters {
		if err := requireNormalized("filter dimension", f.Dimension); err != nil {
			return Query{}, err
		}
		q.Filters = append(q.Filters, Filter{
			Member:   f.Dimension,
			Operator: string(f.Operator),
			Values:   f.Value.Strings(),
		})
	}

	td, err := buildTimeDimension(in, now)
	if err != nil {
		return Query{}, err
	}
	if td != nil {
		q.TimeDimensions = []TimeDimension{*td}
	}

	return q, nil
}

func buildTimeDimension(in intent.Intent, now time.Time) (*TimeDimension, error) {
	if in.TimeDimension == nil && in.TimeRange == nil {
		return nil, nil
	}

	td := &TimeDimension{}
	if in.TimeDimension != nil {
		if err := requireNormalized("time dimension", in.TimeDimension.Dimension); err != nil {
			return nil, err
		}
		td.Dimension = in.TimeDimension.Dimension
		// Granularity buckets rows over time; it only makes sense for trends.
		if in.Type == intent.TypeTrend {
			td.Granularity = in.TimeDimension.Granularity
		}
	} else {
		return nil, &Error{Field: "time dimension", Value: "(absent)"}
	}

	if in.TimeRange != nil {
		if in.TimeRange.Window != "" {
			start, end, err := ExpandWindow(in.TimeRange.Window, now)
			if err != nil {
				return nil, err
			}
			td.DateRange = []string{start, end}
		} else {
			td.DateRange = []string{in.TimeRange.StartDate, in.TimeRange.EndDate}
		}
	}

	return td, nil
}

func requireNormalized(field, value string) error {
	if !strings.Contains(value, ".") {
		return &Error{Field: field, Value: value}
	}
	return nil
}
