package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFile() File {
	return File{
		Metrics: []Item{
			{ID: "sales_fact.quantity", Name: "total_quantity", DisplayName: "Total Quantity", Aliases: []string{"qty", "volume"}},
			{ID: "sales_fact.net_value", Name: "net_sales_value", DisplayName: "Net Sales Value", Aliases: []string{"revenue", "volume"}},
			{ID: "sales_fact.count", Name: "transaction_count", DisplayName: "Transaction Count"},
		},
		Dimensions: []Item{
			{ID: "sales_fact.region", Name: "region", Aliases: []string{"zone"}},
			{ID: "skus.brand", Name: "brand"},
		},
		TimeDimensions: []Item{
			{ID: "sales_fact.invoice_date", Name: "invoice_date", Aliases: []string{"date"}, Granularities: []string{"day", "week", "month", "quarter", "year"}},
		},
		TimeWindows: []Item{
			{ID: "last_7_days", Name: "last_7_days", Aliases: []string{"last week"}},
			{ID: "month_to_date", Name: "month_to_date", Aliases: []string{"mtd"}},
		},
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(testFile())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsMissingSections(t *testing.T) {
	_, err := New(File{Metrics: []Item{{ID: "a.b", Name: "b"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestNew_RejectsDuplicateID(t *testing.T) {
	file := testFile()
	file.Metrics = append(file.Metrics, Item{ID: "sales_fact.quantity", Name: "dup"})
	_, err := New(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestFind_ByIDAndAlias(t *testing.T) {
	c := newTestCatalog(t)

	tests := []struct {
		name    string
		term    string
		cat     Category
		wantIDs []string
	}{
		{"by id", "sales_fact.quantity", CategoryMetric, []string{"sales_fact.quantity"}},
		{"by id uppercase", "SALES_FACT.QUANTITY", CategoryMetric, []string{"sales_fact.quantity"}},
		{"by name", "total_quantity", CategoryMetric, []string{"sales_fact.quantity"}},
		{"by display name", "total quantity", CategoryMetric, []string{"sales_fact.quantity"}},
		{"by alias mixed case", "QtY", CategoryMetric, []string{"sales_fact.quantity"}},
		{"shared alias", "volume", CategoryMetric, []string{"sales_fact.quantity", "sales_fact.net_value"}},
		{"unknown", "profit", CategoryMetric, nil},
		{"dimension alias", "zone", CategoryDimension, []string{"sales_fact.region"}},
		{"window alias", "last week", CategoryTimeWindow, []string{"last_7_days"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := c.Find(tt.term, tt.cat)
			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestResolveSafe_UniqueAliasAnyCasing(t *testing.T) {
	c := newTestCatalog(t)

	for _, term := range []string{"qty", "QTY", "Qty"} {
		result := c.ResolveSafe(term, CategoryMetric)
		require.True(t, result.Found(), "term %q", term)
		assert.False(t, result.Ambiguous)
		require.NotNil(t, result.Match)
		assert.Equal(t, "sales_fact.quantity", result.Match.ID)
	}
}

func TestResolveSafe_SharedTermIsAmbiguous(t *testing.T) {
	c := newTestCatalog(t)

	result := c.ResolveSafe("volume", CategoryMetric)
	assert.True(t, result.Ambiguous)
	assert.Nil(t, result.Match)
	assert.Len(t, result.Matches, 2)
}

func TestResolveSafe_NotFound(t *testing.T) {
	c := newTestCatalog(t)

	result := c.ResolveSafe("profit", CategoryMetric)
	assert.False(t, result.Found())
	assert.False(t, result.Ambiguous)
	assert.Nil(t, result.Match)
}

func TestResolve_AmbiguousNeverPicksFirst(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Resolve("volume", CategoryMetric)
	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.ElementsMatch(t, []string{"total_quantity", "net_sales_value"}, ambiguous.Candidates)
}

func TestResolve_NotFoundCarriesSuggestions(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Resolve("total_qua", CategoryMetric)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"total_quantity"}, notFound.Suggestions)
}

func TestSuggest_PrefixBeforeSubstring(t *testing.T) {
	c := newTestCatalog(t)

	got := c.Suggest("trans", CategoryMetric, 3)
	assert.Equal(t, []string{"transaction_count"}, got)

	// "count" is a substring of transaction_count, not a prefix.
	got = c.Suggest("count", CategoryMetric, 3)
	assert.Equal(t, []string{"transaction_count"}, got)

	assert.Empty(t, c.Suggest("zzz", CategoryMetric, 3))
	assert.Empty(t, c.Suggest("", CategoryMetric, 3))
}

func TestSuggest_CapsAtK(t *testing.T) {
	c := newTestCatalog(t)

	got := c.Suggest("t", CategoryMetric, 1)
	assert.Len(t, got, 1)
}

func TestCrossCategoryCollision(t *testing.T) {
	file := testFile()
	file.Dimensions = append(file.Dimensions, Item{ID: "skus.volume_class", Name: "volume"})
	c, err := New(file)
	require.NoError(t, err)

	assert.True(t, c.CrossCategoryCollision("volume"))
	assert.False(t, c.CrossCategoryCollision("region"))
}

func TestWindowsAndDefaults(t *testing.T) {
	c := newTestCatalog(t)

	assert.Equal(t, []string{"last_7_days", "month_to_date"}, c.Windows())
	assert.Equal(t, "sales_fact.invoice_date", c.DefaultTimeDimension())
}

func TestLoad_ReferenceCatalog(t *testing.T) {
	path := filepath.Join("..", "..", "catalog", "catalog.yaml")
	c, err := Load(path)
	require.NoError(t, err)

	item, err := c.Resolve("revenue", CategoryMetric)
	require.NoError(t, err)
	assert.Equal(t, "sales_fact.net_value", item.ID)

	text, err := c.Text()
	require.NoError(t, err)
	assert.Contains(t, text, "sales_fact.quantity")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
