package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlq/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.File{
		Metrics: []catalog.Item{
			{ID: "sales_fact.net_value", Name: "net_sales_value", Aliases: []string{"net sales", "revenue", "volume"}},
			{ID: "sales_fact.quantity", Name: "total_quantity", Aliases: []string{"quantity", "volume"}},
		},
		Dimensions: []catalog.Item{
			{ID: "sales_fact.region", Name: "region", Aliases: []string{"zone"}},
			{ID: "skus.brand", Name: "brand"},
			{ID: "outlets.outlet_type", Name: "outlet_type", Aliases: []string{"channel"}},
		},
		TimeDimensions: []catalog.Item{
			{ID: "sales_fact.invoice_date", Name: "invoice_date", Aliases: []string{"invoice date", "date"},
				Granularities: []string{"day", "week", "month", "quarter", "year"}},
		},
		TimeWindows: []catalog.Item{
			{ID: "last_7_days", Name: "last 7 days"},
			{ID: "last_month", Name: "last month"},
			{ID: "month_to_date", Name: "month to date", Aliases: []string{"mtd"}},
		},
	})
	require.NoError(t, err)
	return c
}

func validRaw() RawIntent {
	return RawIntent{
		"intent_type": "snapshot",
		"metric":      "revenue",
		"group_by":    []any{"zone"},
		"time_range":  map[string]any{"window": "mtd"},
		"filters": []any{
			map[string]any{"dimension": "channel", "value": "GT"},
		},
	}
}

func TestValidateRewritesToCanonicalIDs(t *testing.T) {
	v := NewValidator(testCatalog(t))

	got, err := v.Validate(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "sales_fact.net_value", got.Metric)
	assert.Equal(t, []string{"sales_fact.region"}, got.GroupBy)
	assert.Equal(t, "month_to_date", got.TimeRange.Window)
	require.Len(t, got.Filters, 1)
	assert.Equal(t, "outlets.outlet_type", got.Filters[0].Dimension)

	// Snapshot with a time range gets the catalog's default time dimension
	// so downstream never has to guess.
	require.NotNil(t, got.TimeDimension)
	assert.Equal(t, "sales_fact.invoice_date", got.TimeDimension.Dimension)
}

func TestValidateTrend(t *testing.T) {
	v := NewValidator(testCatalog(t))

	got, err := v.Validate(RawIntent{
		"intent_type":    "trend",
		"metric":         "net sales",
		"time_dimension": map[string]any{"dimension": "invoice date", "granularity": "MONTH"},
		"time_range":     map[string]any{"window": "last_month"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sales_fact.invoice_date", got.TimeDimension.Dimension)
	assert.Equal(t, "month", got.TimeDimension.Granularity, "granularity is case-folded")
}

func TestValidateGranularityDefaultsToDay(t *testing.T) {
	v := NewValidator(testCatalog(t))

	got, err := v.Validate(RawIntent{
		"intent_type":    "trend",
		"metric":         "net sales",
		"time_dimension": map[string]any{"dimension": "invoice date"},
		"time_range":     map[string]any{"window": "last_month"},
	})
	require.NoError(t, err)
	assert.Equal(t, "day", got.TimeDimension.Granularity)
}

func TestValidateIncompleteBeforeStructure(t *testing.T) {
	v := NewValidator(testCatalog(t))

	// A snapshot with no metric and no time bound is a clarification case,
	// not a hard failure, even though parseRaw would also reject it.
	_, err := v.Validate(RawIntent{"intent_type": "snapshot"})
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, []string{"metric", "time_range"}, inc.MissingFields)
	assert.Contains(t, inc.ClarificationMessage(), "metric")
}

func TestValidateSnapshotWithoutTimeRangeAsksForOne(t *testing.T) {
	v := NewValidator(testCatalog(t))

	// An unbounded snapshot never reaches execution; the user is asked for
	// a time range instead.
	_, err := v.Validate(RawIntent{"intent_type": "snapshot", "metric": "revenue"})
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, []string{"time_range"}, inc.MissingFields)
}

func TestValidateTrendMissingTimeAxisIsMalformed(t *testing.T) {
	v := NewValidator(testCatalog(t))

	// A trend without its time axis contradicts the extraction schema, so
	// it is rejected outright rather than routed to clarification.
	_, err := v.Validate(RawIntent{
		"intent_type":    "trend",
		"metric":         "revenue",
		"time_dimension": map[string]any{"dimension": "invoice date", "granularity": "day"},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeMalformedIntent, verr.Code)
	assert.Equal(t, "time_range", verr.Field)

	_, err = v.Validate(RawIntent{
		"intent_type": "trend",
		"metric":      "revenue",
		"time_range":  map[string]any{"window": "last_month"},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeMalformedIntent, verr.Code)
	assert.Equal(t, "time_dimension", verr.Field)
}

func TestValidateEmptyTimeRangeIsMalformed(t *testing.T) {
	v := NewValidator(testCatalog(t))

	// time_range present but empty is a contradiction, not a gap.
	_, err := v.Validate(RawIntent{
		"intent_type":    "trend",
		"metric":         "revenue",
		"time_dimension": map[string]any{"dimension": "date", "granularity": "day"},
		"time_range":     map[string]any{},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeMalformedIntent, verr.Code)
	assert.Equal(t, "time_range", verr.Field)
}

func TestValidateFailureCodes(t *testing.T) {
	v := NewValidator(testCatalog(t))

	tests := []struct {
		name     string
		mutate   func(RawIntent)
		code     Code
		field    string
		suggests string
	}{
		{
			name:     "unknown metric",
			mutate:   func(r RawIntent) { r["metric"] = "net" },
			code:     CodeUnknownMetric,
			field:    "metric",
			suggests: "net_sales_value",
		},
		{
			name:   "ambiguous metric",
			mutate: func(r RawIntent) { r["metric"] = "volume" },
			code:   CodeAmbiguousMetric,
			field:  "metric",
		},
		{
			name:   "unknown group_by dimension",
			mutate: func(r RawIntent) { r["group_by"] = []any{"zone", "warehouse"} },
			code:   CodeUnknownDimension,
			field:  "group_by[1]",
		},
		{
			name: "unknown time dimension",
			mutate: func(r RawIntent) {
				r["time_dimension"] = map[string]any{"dimension": "ship date", "granularity": "day"}
			},
			code:  CodeUnknownTimeDimension,
			field: "time_dimension.dimension",
		},
		{
			name: "invalid granularity",
			mutate: func(r RawIntent) {
				r["time_dimension"] = map[string]any{"dimension": "invoice date", "granularity": "fortnight"}
			},
			code:     CodeInvalidGranularity,
			field:    "time_dimension.granularity",
			suggests: "quarter",
		},
		{
			name:     "invalid time window",
			mutate:   func(r RawIntent) { r["time_range"] = map[string]any{"window": "last_decade"} },
			code:     CodeInvalidTimeWindow,
			field:    "time_range.window",
			suggests: "last_month",
		},
		{
			name: "unknown filter dimension",
			mutate: func(r RawIntent) {
				r["filters"] = []any{map[string]any{"dimension": "distributor", "value": "x"}}
			},
			code:  CodeInvalidFilter,
			field: "filters[0].dimension",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)

			_, err := v.Validate(raw)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.code, verr.Code)
			assert.Equal(t, tt.field, verr.Field)
			if tt.suggests != "" {
				assert.Contains(t, verr.Suggestions, tt.suggests)
			}
		})
	}
}

func TestValidateAmbiguousMetricCandidates(t *testing.T) {
	v := NewValidator(testCatalog(t))

	raw := validRaw()
	raw["metric"] = "volume"
	_, err := v.Validate(raw)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"net_sales_value", "total_quantity"}, verr.Candidates)
	assert.Empty(t, verr.Suggestions)
}

func TestValidateStopsAtFirstFailure(t *testing.T) {
	v := NewValidator(testCatalog(t))

	// Both the metric and the window are bad; only the metric is reported.
	raw := validRaw()
	raw["metric"] = "profit"
	raw["time_range"] = map[string]any{"window": "last_decade"}

	_, err := v.Validate(raw)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeUnknownMetric, verr.Code)
}

func TestValidateExplicitDatesSkipWindowResolution(t *testing.T) {
	v := NewValidator(testCatalog(t))

	raw := validRaw()
	raw["time_range"] = map[string]any{"start_date": "2024-01-01", "end_date": "2024-01-31"}

	got, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got.TimeRange.StartDate)
	assert.Equal(t, "2024-01-31", got.TimeRange.EndDate)
}
