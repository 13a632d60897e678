// Package intent defines the canonical query-intent contract between the
// natural-language extraction layer and the query translator, and the
// semantic validation gate that enforces it.
//
// A RawIntent is whatever the extractor produced: untrusted, unchecked,
// possibly garbage. An Intent only ever exists as the output of
// Validator.Validate, after which it is immutable and safe to translate.
package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Type is the kind of analytical query being asked for.
type Type string

const (
	// TypeSnapshot is a point-in-time metric value ("total sales this month").
	TypeSnapshot Type = "snapshot"
	// TypeTrend is a metric over time ("daily sales last 30 days"). Trend
	// intents must carry both a time dimension and a time range.
	TypeTrend Type = "trend"
)

// Operator is a filter comparison operator.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpContains  Operator = "contains"
)

var validOperators = map[Operator]bool{
	OpEquals:    true,
	OpNotEquals: true,
	OpIn:        true,
	OpNotIn:     true,
	OpContains:  true,
}

// listOperators require a list value; every other operator requires a scalar.
var listOperators = map[Operator]bool{
	OpIn:    true,
	OpNotIn: true,
}

// RawIntent is the direct, unchecked output of the extractor. No invariants
// hold; treat every key and value as hostile until validated.
type RawIntent map[string]any

// TimeRange is either a named window or an explicit closed date range.
// Exactly one form is populated, never both, never half of the explicit pair.
type TimeRange struct {
	Window    string `json:"window,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// TimeDimension names the time field trends are bucketed on and the bucket
// granularity.
type TimeDimension struct {
	Dimension   string `json:"dimension"`
	Granularity string `json:"granularity"`
}

// FilterValue holds a filter's value: a scalar string or a list of strings,
// matching the cardinality its operator demands.
type FilterValue struct {
	scalar string
	list   []string
	isList bool
}

// ScalarValue builds a scalar filter value.
func ScalarValue(v string) FilterValue { return FilterValue{scalar: v} }

// ListValue builds a list filter value.
func ListValue(vs ...string) FilterValue { return FilterValue{list: vs, isList: true} }

// IsList reports whether the value is a list.
func (v FilterValue) IsList() bool { return v.isList }

// Strings returns the value as a list of strings regardless of form.
func (v FilterValue) Strings() []string {
	if v.isList {
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	}
	return []string{v.scalar}
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
// Anything else is a structural error surfaced as MalformedIntent upstream.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("filter value list must contain only strings: %w", err)
		}
		*v = FilterValue{list: list, isList: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return fmt.Errorf("filter value must be a string or a list of strings: %w", err)
	}
	*v = FilterValue{scalar: s}
	return nil
}

// MarshalJSON emits the original scalar-or-list shape.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		return json.Marshal(v.list)
	}
	return json.Marshal(v.scalar)
}

// Filter is a single dimension predicate.
type Filter struct {
	Dimension string      `json:"dimension"`
	Operator  Operator    `json:"operator"`
	Value     FilterValue `json:"value"`
}

// Intent is the validated, immutable representation of an analytical query.
// After validation every metric/dimension string is a canonical catalog id.
type Intent struct {
	Type          Type           `json:"intent_type"`
	Metric        string         `json:"metric"`
	GroupBy       []string       `json:"group_by,omitempty"`
	TimeDimension *TimeDimension `json:"time_dimension,omitempty"`
	TimeRange     *TimeRange     `json:"time_range,omitempty"`
	Filters       []Filter       `json:"filters,omitempty"`
	Limit         int            `json:"limit,omitempty"`
}

// rawShape is the strict decoding target for a RawIntent. Unknown keys are
// rejected: the extractor contract is a closed schema.
type rawShape struct {
	Type          string         `json:"intent_type"`
	Metric        string         `json:"metric"`
	GroupBy       []string       `json:"group_by"`
	TimeDimension *TimeDimension `json:"time_dimension"`
	TimeRange     *TimeRange     `json:"time_range"`
	Filters       []Filter       `json:"filters"`
	Limit         *int           `json:"limit"`
}

// parseRaw converts an untrusted RawIntent into a structurally sound Intent.
// Every failure is a *ValidationError with CodeMalformedIntent naming the
// offending field.
func parseRaw(raw RawIntent) (Intent, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Intent{}, malformed("", "intent is not representable as JSON: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var shape rawShape
	if err := dec.Decode(&shape); err != nil {
		return Intent{}, malformed("", "%v", err)
	}

	intentType := Type(strings.ToLower(strings.TrimSpace(shape.Type)))
	switch intentType {
	case TypeSnapshot, TypeTrend:
	case "":
		return Intent{}, malformed("intent_type", "intent_type is required")
	default:
		return Intent{}, malformed("intent_type", "unsupported intent type %q (supported: snapshot, trend)", shape.Type)
	}

	if strings.TrimSpace(shape.Metric) == "" {
		return Intent{}, malformed("metric", "metric must be a non-empty string")
	}

	if tr := shape.TimeRange; tr != nil {
		hasWindow := tr.Window != ""
		hasStart := tr.StartDate != ""
		hasEnd := tr.EndDate != ""
		switch {
		case hasWindow && (hasStart || hasEnd):
			return Intent{}, malformed("time_range", "specify either a named window or explicit start_date/end_date, not both")
		case !hasWindow && !hasStart && !hasEnd:
			return Intent{}, malformed("time_range", "time_range must carry a window or explicit start_date and end_date")
		case !hasWindow && (!hasStart || !hasEnd):
			return Intent{}, malformed("time_range", "explicit date ranges require both start_date and end_date")
		}
	}

	if intentType == TypeTrend {
		if shape.TimeDimension == nil {
			return Intent{}, malformed("time_dimension", "trend intents require time_dimension")
		}
		if shape.TimeRange == nil {
			return Intent{}, malformed("time_range", "trend intents require time_range")
		}
	}

	for i, f := range shape.Filters {
		if strings.TrimSpace(f.Dimension) == "" {
			return Intent{}, malformed(fmt.Sprintf("filters[%d].dimension", i), "filter dimension is required")
		}
		op := f.Operator
		if op == "" {
			op = OpEquals
			shape.Filters[i].Operator = op
		}
		if !validOperators[op] {
			return Intent{}, malformed(fmt.Sprintf("filters[%d].operator", i), "unsupported operator %q", f.Operator)
		}
		if listOperators[op] != f.Value.IsList() {
			want, got := "a single value", "a list"
			if listOperators[op] {
				want, got = "a list of values", "a single value"
			}
			return Intent{}, malformed(fmt.Sprintf("filters[%d].value", i), "operator %q requires %s, got %s", op, want, got)
		}
		if f.Value.IsList() {
			if len(f.Value.list) == 0 {
				return Intent{}, malformed(fmt.Sprintf("filters[%d].value", i), "filter value is required")
			}
		} else if strings.TrimSpace(f.Value.scalar) == "" {
			return Intent{}, malformed(fmt.Sprintf("filters[%d].value", i), "filter value is required")
		}
	}

	limit := 0
	if shape.Limit != nil {
		if *shape.Limit <= 0 {
			return Intent{}, malformed("limit", "limit must be a positive integer")
		}
		limit = *shape.Limit
	}

	return Intent{
		Type:          intentType,
		Metric:        strings.TrimSpace(shape.Metric),
		GroupBy:       shape.GroupBy,
		TimeDimension: shape.TimeDimension,
		TimeRange:     shape.TimeRange,
		Filters:       shape.Filters,
		Limit:         limit,
	}, nil
}

// missingFields reports which interactively-suppliable fields are absent from
// a raw intent. A non-empty result routes the request to clarification
// instead of validation.
func missingFields(raw RawIntent) []string {
	var missing []string

	switch metric := raw["metric"].(type) {
	case nil:
		missing = append(missing, "metric")
	case string:
		if strings.TrimSpace(metric) == "" {
			missing = append(missing, "metric")
		}
	}

	// Snapshots without a time bound ask the user for one. A trend missing
	// its time axis is the extractor contradicting the schema, not a gap:
	// parseRaw rejects it as malformed.
	intentType, _ := raw["intent_type"].(string)
	if strings.EqualFold(strings.TrimSpace(intentType), string(TypeSnapshot)) {
		if v, ok := raw["time_range"]; !ok || v == nil {
			missing = append(missing, "time_range")
		}
	}
	return missing
}
