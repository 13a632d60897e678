package intent

import (
	"fmt"
	"strings"

	"nlq/internal/catalog"
)

// Granularities is the fixed set of trend bucket sizes the system accepts.
// A time dimension entry in the catalog may narrow this to a subset.
var Granularities = []string{"day", "week", "month", "quarter", "year"}

// DefaultGranularity is assumed when a time dimension carries no
// granularity of its own.
const DefaultGranularity = "day"

// Validator is the semantic gate between the extractor and the translator.
// If Validate returns an Intent, every field in it is a canonical catalog id
// and the query is safe to translate and execute.
type Validator struct {
	catalog *catalog.Catalog
}

// NewValidator builds a Validator over an already-loaded catalog. The
// catalog is injected, never reached for globally.
func NewValidator(c *catalog.Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate runs the fixed-order validation gate over an untrusted raw
// intent:
//
//  1. completeness (absent suppliable fields -> *IncompleteError)
//  2. structural parse (-> MALFORMED_INTENT)
//  3. metric resolution
//  4. group_by resolution, positional
//  5. time dimension + granularity
//  6. time window
//  7. filters, indexed
//
// Each rule short-circuits on first failure: one problem is reported at a
// time so the caller always knows the first thing to fix. Resolution
// rewrites free-text terms to canonical catalog ids in the returned Intent.
func (v *Validator) Validate(raw RawIntent) (Intent, error) {
	if missing := missingFields(raw); len(missing) > 0 {
		return Intent{}, &IncompleteError{MissingFields: missing}
	}

	parsed, err := parseRaw(raw)
	if err != nil {
		return Intent{}, err
	}

	metric, err := v.resolveMetric(parsed.Metric)
	if err != nil {
		return Intent{}, err
	}
	parsed.Metric = metric

	for i, dim := range parsed.GroupBy {
		resolved, err := v.resolveDimension(dim, fmt.Sprintf("group_by[%d]", i))
		if err != nil {
			return Intent{}, err
		}
		parsed.GroupBy[i] = resolved
	}

	if td := parsed.TimeDimension; td != nil {
		item, err := v.resolveTimeDimension(td.Dimension)
		if err != nil {
			return Intent{}, err
		}
		granularity := strings.ToLower(strings.TrimSpace(td.Granularity))
		if granularity == "" {
			granularity = DefaultGranularity
		}
		allowed := item.Granularities
		if len(allowed) == 0 {
			allowed = Granularities
		}
		if !contains(allowed, granularity) {
			return Intent{}, &ValidationError{
				Code:        CodeInvalidGranularity,
				Field:       "time_dimension.granularity",
				Value:       td.Granularity,
				Message:     fmt.Sprintf("invalid granularity %q. Valid options: %s", td.Granularity, strings.Join(allowed, ", ")),
				Suggestions: allowed,
			}
		}
		parsed.TimeDimension = &TimeDimension{Dimension: item.ID, Granularity: granularity}
	}

	if tr := parsed.TimeRange; tr != nil && tr.Window != "" {
		window, err := v.resolveWindow(tr.Window)
		if err != nil {
			return Intent{}, err
		}
		parsed.TimeRange = &TimeRange{Window: window}
	}

	for i, f := range parsed.Filters {
		resolved, err := v.resolveFilterDimension(f.Dimension, i)
		if err != nil {
			return Intent{}, err
		}
		parsed.Filters[i].Dimension = resolved
	}

	// A snapshot with a time range but no time dimension is pinned to the
	// catalog's default time dimension here, so the translator stays
	// catalog-free.
	if parsed.TimeRange != nil && parsed.TimeDimension == nil {
		parsed.TimeDimension = &TimeDimension{Dimension: v.catalog.DefaultTimeDimension()}
	}

	return parsed, nil
}

func (v *Validator) resolveMetric(term string) (string, error) {
	result := v.catalog.ResolveSafe(term, catalog.CategoryMetric)
	if result.Ambiguous {
		return "", ambiguousTerm(CodeAmbiguousMetric, "metric", term, candidateNames(result))
	}
	if !result.Found() {
		return "", unknownTerm(CodeUnknownMetric, "metric", term, v.catalog.Suggest(term, catalog.CategoryMetric, 3))
	}
	return result.Match.ID, nil
}

func (v *Validator) resolveDimension(term, field string) (string, error) {
	result := v.catalog.ResolveSafe(term, catalog.CategoryDimension)
	if result.Ambiguous {
		return "", ambiguousTerm(CodeAmbiguousDimension, field, term, candidateNames(result))
	}
	if !result.Found() {
		return "", unknownTerm(CodeUnknownDimension, field, term, v.catalog.Suggest(term, catalog.CategoryDimension, 3))
	}
	return result.Match.ID, nil
}

func (v *Validator) resolveTimeDimension(term string) (*catalog.Item, error) {
	result := v.catalog.ResolveSafe(term, catalog.CategoryTimeDimension)
	if result.Ambiguous {
		return nil, ambiguousTerm(CodeAmbiguousDimension, "time_dimension.dimension", term, candidateNames(result))
	}
	if !result.Found() {
		return nil, unknownTerm(CodeUnknownTimeDimension, "time_dimension.dimension", term,
			v.catalog.Suggest(term, catalog.CategoryTimeDimension, 3))
	}
	return result.Match, nil
}

func (v *Validator) resolveWindow(term string) (string, error) {
	result := v.catalog.ResolveSafe(term, catalog.CategoryTimeWindow)
	if result.Match == nil {
		return "", &ValidationError{
			Code:        CodeInvalidTimeWindow,
			Field:       "time_range.window",
			Value:       term,
			Message:     fmt.Sprintf("invalid time window %q. Valid options: %s", term, strings.Join(v.catalog.Windows(), ", ")),
			Suggestions: v.catalog.Windows(),
		}
	}
	return result.Match.ID, nil
}

// resolveFilterDimension resolves a filter's dimension like group_by, but
// reports failures as INVALID_FILTER tagged with the filter index.
func (v *Validator) resolveFilterDimension(term string, index int) (string, error) {
	field := fmt.Sprintf("filters[%d].dimension", index)
	result := v.catalog.ResolveSafe(term, catalog.CategoryDimension)
	if result.Ambiguous {
		return "", &ValidationError{
			Code:       CodeInvalidFilter,
			Field:      field,
			Value:      term,
			Message:    fmt.Sprintf("ambiguous filter dimension %q: matches %s", term, strings.Join(candidateNames(result), ", ")),
			Candidates: candidateNames(result),
		}
	}
	if !result.Found() {
		suggestions := v.catalog.Suggest(term, catalog.CategoryDimension, 3)
		msg := fmt.Sprintf("unknown filter dimension %q", term)
		if len(suggestions) > 0 {
			msg += fmt.Sprintf(". Did you mean: %s?", strings.Join(suggestions, ", "))
		}
		return "", &ValidationError{
			Code:        CodeInvalidFilter,
			Field:       field,
			Value:       term,
			Message:     msg,
			Suggestions: suggestions,
		}
	}
	return result.Match.ID, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func candidateNames(result catalog.ResolutionResult) []string {
	names := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		names = append(names, m.Name)
	}
	return names
}
