// Package catalog holds the reference vocabulary that maps natural-language
// terms to canonical analytics schema fields.
//
// The catalog is built once at process start and is read-only afterwards, so
// any number of in-flight pipelines may resolve terms concurrently without
// synchronization. Every lookup is case-insensitive: natural-language input
// has no reliable casing.
//
// Ambiguity is a first-class outcome here. A term that matches more than one
// item in a category is never resolved by picking the first match; callers
// get a ResolutionResult (or a typed error from Resolve) carrying every
// candidate.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Category identifies which vocabulary an item belongs to.
type Category string

const (
	CategoryMetric        Category = "metric"
	CategoryDimension     Category = "dimension"
	CategoryTimeDimension Category = "time_dimension"
	CategoryTimeWindow    Category = "time_window"
)

// Categories lists every vocabulary category in a stable order.
var Categories = []Category{
	CategoryMetric,
	CategoryDimension,
	CategoryTimeDimension,
	CategoryTimeWindow,
}

// Item is a single catalog entry.
//
// ID is the canonical target-schema field (e.g. "sales_fact.quantity") and is
// unique within its category. Name, DisplayName and Aliases are free-text
// lookup keys; they are not guaranteed unique, which is exactly what the
// ambiguity machinery exists for.
type Item struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	DisplayName   string   `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Aliases       []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Granularities []string `yaml:"granularities,omitempty" json:"granularities,omitempty"`
}

// ResolutionResult reports the outcome of a safe resolution.
//
// Invariants: Ambiguous is true iff len(Matches) > 1, and Match is non-nil
// iff exactly one item matched.
type ResolutionResult struct {
	Match     *Item    `json:"match,omitempty"`
	Ambiguous bool     `json:"ambiguous"`
	Matches   []Item   `json:"matches"`
	Category  Category `json:"category"`
}

// Found reports whether the term matched anything at all.
func (r ResolutionResult) Found() bool {
	return len(r.Matches) > 0
}

// NotFoundError is returned by Resolve when a term matches nothing in the
// requested category.
type NotFoundError struct {
	Term        string
	Category    Category
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found in catalog", e.Category, e.Term)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// AmbiguousError is returned by Resolve when a term matches more than one
// item in a category. It carries every candidate name so the caller can ask
// the user to pick one; resolution never silently prefers a candidate.
type AmbiguousError struct {
	Term       string
	Category   Category
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous %s %q: matches %s", e.Category, e.Term, strings.Join(e.Candidates, ", "))
}

// Catalog indexes the vocabulary for fast, case-insensitive lookups.
type Catalog struct {
	file File

	// Per-category unique id -> item.
	byID map[Category]map[string]Item
	// Per-category lowercased name/display-name/alias -> items, de-duplicated
	// by id. Lists, not single items: ambiguity detection depends on it.
	byTerm map[Category]map[string][]Item
	// Lowercased term -> categories it appears in, for collision detection.
	crossCategory map[string]map[Category]bool
}

// New builds a Catalog from an already-parsed File.
func New(file File) (*Catalog, error) {
	if err := file.validate(); err != nil {
		return nil, err
	}

	c := &Catalog{
		file:          file,
		byID:          make(map[Category]map[string]Item),
		byTerm:        make(map[Category]map[string][]Item),
		crossCategory: make(map[string]map[Category]bool),
	}
	for _, cat := range Categories {
		c.byID[cat] = make(map[string]Item)
		c.byTerm[cat] = make(map[string][]Item)
	}

	for cat, items := range map[Category][]Item{
		CategoryMetric:        file.Metrics,
		CategoryDimension:     file.Dimensions,
		CategoryTimeDimension: file.TimeDimensions,
		CategoryTimeWindow:    file.TimeWindows,
	} {
		for _, item := range items {
			if err := c.index(cat, item); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Catalog) index(cat Category, item Item) error {
	id := strings.ToLower(item.ID)
	if id == "" {
		return fmt.Errorf("catalog: %s %q has empty id", cat, item.Name)
	}
	if _, dup := c.byID[cat][id]; dup {
		return fmt.Errorf("catalog: duplicate %s id %q", cat, item.ID)
	}
	c.byID[cat][id] = item

	terms := append([]string{item.Name, item.DisplayName}, item.Aliases...)
	for _, term := range terms {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" {
			continue
		}
		c.addTerm(cat, key, item)
	}
	// Time windows are also addressable by their id verbatim ("last_7_days").
	if cat == CategoryTimeWindow {
		c.addTerm(cat, id, item)
	}
	return nil
}

// addTerm appends item to the term index unless the same id is already
// present under that key.
func (c *Catalog) addTerm(cat Category, key string, item Item) {
	for _, existing := range c.byTerm[cat][key] {
		if existing.ID == item.ID {
			return
		}
	}
	c.byTerm[cat][key] = append(c.byTerm[cat][key], item)

	if c.crossCategory[key] == nil {
		c.crossCategory[key] = make(map[Category]bool)
	}
	c.crossCategory[key][cat] = true
}

// Find returns every item in the category matching the term, id hits first.
// It never fails; an unknown term yields an empty slice.
func (c *Catalog) Find(term string, cat Category) []Item {
	key := strings.ToLower(strings.TrimSpace(term))
	if item, ok := c.byID[cat][key]; ok {
		return []Item{item}
	}
	matches := c.byTerm[cat][key]
	out := make([]Item, len(matches))
	copy(out, matches)
	return out
}

// ResolveSafe resolves a term without failing: zero matches means not found,
// one match is returned, two or more flag ambiguity with no item selected.
func (c *Catalog) ResolveSafe(term string, cat Category) ResolutionResult {
	matches := c.Find(term, cat)
	switch len(matches) {
	case 0:
		return ResolutionResult{Matches: []Item{}, Category: cat}
	case 1:
		return ResolutionResult{Match: &matches[0], Matches: matches, Category: cat}
	default:
		return ResolutionResult{Ambiguous: true, Matches: matches, Category: cat}
	}
}

// Resolve is the strict form of ResolveSafe. It returns *NotFoundError or
// *AmbiguousError instead of guessing; the ambiguous error carries every
// candidate name.
func (c *Catalog) Resolve(term string, cat Category) (Item, error) {
	result := c.ResolveSafe(term, cat)
	if result.Ambiguous {
		candidates := make([]string, 0, len(result.Matches))
		for _, m := range result.Matches {
			candidates = append(candidates, m.Name)
		}
		return Item{}, &AmbiguousError{Term: term, Category: cat, Candidates: candidates}
	}
	if !result.Found() {
		return Item{}, &NotFoundError{
			Term:        term,
			Category:    cat,
			Suggestions: c.Suggest(term, cat, 3),
		}
	}
	return *result.Match, nil
}

// Suggest returns up to k vocabulary names similar to term: exact-prefix
// matches first, then substring matches, de-duplicated. Used for error
// messages only, never for silent correction.
func (c *Catalog) Suggest(term string, cat Category, k int) []string {
	query := strings.ToLower(strings.TrimSpace(term))
	if query == "" || k <= 0 {
		return nil
	}

	names := c.Names(cat)
	seen := make(map[string]bool, len(names))
	var prefix, substring []string
	for _, name := range names {
		lower := strings.ToLower(name)
		if seen[lower] {
			continue
		}
		switch {
		case strings.HasPrefix(lower, query):
			seen[lower] = true
			prefix = append(prefix, name)
		case strings.Contains(lower, query):
			seen[lower] = true
			substring = append(substring, name)
		}
	}

	suggestions := append(prefix, substring...)
	if len(suggestions) > k {
		suggestions = suggestions[:k]
	}
	return suggestions
}

// CrossCategoryCollision reports whether a term appears in more than one
// vocabulary category (e.g. the same word names a metric and a dimension).
func (c *Catalog) CrossCategoryCollision(term string) bool {
	key := strings.ToLower(strings.TrimSpace(term))
	return len(c.crossCategory[key]) > 1
}

// Items returns all items in a category in file order.
func (c *Catalog) Items(cat Category) []Item {
	var items []Item
	switch cat {
	case CategoryMetric:
		items = c.file.Metrics
	case CategoryDimension:
		items = c.file.Dimensions
	case CategoryTimeDimension:
		items = c.file.TimeDimensions
	case CategoryTimeWindow:
		items = c.file.TimeWindows
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Names returns the canonical names of every item in a category.
func (c *Catalog) Names(cat Category) []string {
	items := c.Items(cat)
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

// Windows returns the sorted canonical ids of every time window, for
// attaching to invalid-window errors.
func (c *Catalog) Windows() []string {
	windows := make([]string, 0, len(c.file.TimeWindows))
	for _, w := range c.file.TimeWindows {
		windows = append(windows, w.ID)
	}
	sort.Strings(windows)
	return windows
}

// DefaultTimeDimension returns the schema id of the catalog's first time
// dimension. Snapshot intents that carry a time range but no explicit time
// dimension are pinned to it during validation.
func (c *Catalog) DefaultTimeDimension() string {
	if len(c.file.TimeDimensions) == 0 {
		return ""
	}
	return c.file.TimeDimensions[0].ID
}
