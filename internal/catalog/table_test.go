package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func sampleRows() []Product {
	return []Product{
		{ID: 1, Name: "Apple", Category: "Fruit", Description: "Red and crisp", CostPrice: 5, SellingPrice: 7, StockAvailable: 10, UnitsSold: 3, CustomerRating: 4.5, DemandForecast: fptr(0.4)},
		{ID: 2, Name: "Banana", Category: "Fruit", Description: "Yellow", CostPrice: 2, SellingPrice: 3, StockAvailable: 40, UnitsSold: 30, CustomerRating: 4.1},
		{ID: 3, Name: "Carrot", Category: "Vegetable", Description: "Orange root", CostPrice: 1, SellingPrice: 2, StockAvailable: 5, UnitsSold: 8, CustomerRating: 3.9, OptimizedPrice: fptr(2.5)},
		{ID: 4, Name: "apricot jam", Category: "Pantry", Description: "Made from apricots", CostPrice: 4, SellingPrice: 6, StockAvailable: 0, UnitsSold: 12, CustomerRating: 4.8, DemandForecast: fptr(0.1)},
	}
}

func names(rows []Product) []string {
	out := make([]string, 0, len(rows))
	for _, p := range rows {
		out = append(out, p.Name)
	}
	return out
}

func costs(rows []Product) []float64 {
	out := make([]float64, 0, len(rows))
	for _, p := range rows {
		out = append(out, p.CostPrice)
	}
	return out
}

func TestDefaultViewState(t *testing.T) {
	tbl := NewTable(nil, ViewState{})
	st := tbl.State()
	assert.Equal(t, OrderAsc, st.Order)
	assert.Equal(t, ColName, st.OrderBy)
	assert.Equal(t, 0, st.Page)
	assert.Equal(t, 10, st.RowsPerPage)
	assert.Empty(t, st.Selected)
}

func TestSetSortTogglesDirection(t *testing.T) {
	rows := []Product{{ID: 1, Name: "a", CostPrice: 5}, {ID: 2, Name: "b", CostPrice: 2}}
	tbl := NewTable(rows, DefaultViewState())
	assert.Equal(t, []float64{5, 2}, costs(tbl.Visible().Rows))

	tbl.SetSort(ColCostPrice)
	assert.Equal(t, OrderAsc, tbl.State().Order)
	assert.Equal(t, []float64{2, 5}, costs(tbl.Visible().Rows))

	tbl.SetSort(ColCostPrice)
	assert.Equal(t, OrderDesc, tbl.State().Order)
	assert.Equal(t, []float64{5, 2}, costs(tbl.Visible().Rows))

	tbl.SetSort(ColCostPrice)
	assert.Equal(t, OrderAsc, tbl.State().Order)
}

func TestSetSortNewColumnStartsAscending(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SetSort(ColName)
	require.Equal(t, OrderDesc, tbl.State().Order)

	tbl.SetSort(ColUnitsSold)
	assert.Equal(t, OrderAsc, tbl.State().Order)
	assert.Equal(t, ColUnitsSold, tbl.State().OrderBy)
}

func TestSetSortIgnoresUnknownKey(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SetSort("id; drop")
	assert.Equal(t, ColName, tbl.State().OrderBy)
	assert.Equal(t, OrderAsc, tbl.State().Order)
}

func TestSortIsBytewise(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	// Upper case sorts before lower case.
	assert.Equal(t, []string{"Apple", "Banana", "Carrot", "apricot jam"}, names(tbl.Visible().Rows))
}

func TestSortIsStable(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SetSort(ColCategory)
	got := tbl.Visible().Rows
	assert.Equal(t, []string{"Apple", "Banana", "apricot jam", "Carrot"}, names(got))
}

func TestSortMissingOptionalFirst(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SetSort(ColDemandForecast)
	assert.Equal(t, []string{"Banana", "Carrot", "apricot jam", "Apple"}, names(tbl.Visible().Rows))

	tbl.SetSort(ColDemandForecast)
	assert.Equal(t, []string{"Apple", "apricot jam", "Banana", "Carrot"}, names(tbl.Visible().Rows))
}

func TestSearchMatchesNameDescriptionCategory(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())

	tbl.SetSearch("AP")
	assert.Equal(t, []string{"Apple", "apricot jam"}, names(tbl.Visible().Rows))

	tbl.SetSearch("root")
	assert.Equal(t, []string{"Carrot"}, names(tbl.Visible().Rows))

	tbl.SetSearch("vegetable")
	assert.Equal(t, []string{"Carrot"}, names(tbl.Visible().Rows))

	tbl.SetSearch("")
	assert.Len(t, tbl.Visible().Rows, 4)
	assert.False(t, tbl.State().IsFiltered())
}

func TestFilterExactCategory(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SetFilter("Fruit")
	page := tbl.Visible()
	assert.Equal(t, []string{"Apple", "Banana"}, names(page.Rows))
	assert.Equal(t, 2, page.Total)

	tbl.SetFilter("fruit")
	assert.Empty(t, tbl.Visible().Rows)

	tbl.SetFilter("")
	assert.Equal(t, 4, tbl.Visible().Total)
}

func TestLastFilterOperationWins(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())

	tbl.SetFilter("Fruit")
	tbl.SetSearch("carrot")
	assert.Equal(t, []string{"Carrot"}, names(tbl.Visible().Rows))
	assert.Empty(t, tbl.State().FilterCategory)

	tbl.SetSearch("apple")
	tbl.SetFilter("Pantry")
	assert.Equal(t, []string{"apricot jam"}, names(tbl.Visible().Rows))
	assert.Empty(t, tbl.State().SearchQuery)
}

func TestCategoriesAreDistinctAndSorted(t *testing.T) {
	rows := append(sampleRows(), Product{ID: 9, Name: "Nameless"})
	tbl := NewTable(rows, DefaultViewState())
	assert.Equal(t, []string{"Fruit", "Pantry", "Vegetable"}, tbl.Categories())
}

func TestPaginationConcatenatesToBase(t *testing.T) {
	rows := make([]Product, 0, 23)
	for i := 0; i < 23; i++ {
		rows = append(rows, Product{ID: int64(i + 1), Name: string(rune('A' + i))})
	}
	tbl := NewTable(rows, DefaultViewState())

	var all []Product
	for p := 0; p < 3; p++ {
		tbl.SetPage(p)
		page := tbl.Visible()
		assert.Equal(t, 23, page.Total)
		all = append(all, page.Rows...)
	}
	assert.Equal(t, names(tbl.Sorted()), names(all))

	tbl.SetPage(2)
	last := tbl.Visible()
	assert.Len(t, last.Rows, 3)
	assert.Equal(t, 7, last.EmptyRows)
	assert.Equal(t, 21, last.Pagination.From)
	assert.Equal(t, 23, last.Pagination.To)
	assert.False(t, last.Pagination.HasNext())
}

func TestPageBeyondEndIsEmpty(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SetPage(5)
	page := tbl.Visible()
	assert.Empty(t, page.Rows)
	assert.Equal(t, 4, page.Total)

	tbl.SetPage(-3)
	assert.Equal(t, 0, tbl.State().Page)
}

func TestHugePageIsEmptyWithoutOverflow(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	for _, n := range []int{1 << 62, math.MaxInt} {
		tbl.SetPage(n)
		var page Page
		require.NotPanics(t, func() { page = tbl.Visible() })
		assert.Empty(t, page.Rows)
		assert.Equal(t, 4, page.Total)
		assert.Equal(t, page.RowsPerPage, page.EmptyRows)
		assert.False(t, page.Pagination.HasNext())
		assert.True(t, page.Pagination.HasPrev())
	}
}

func TestSetRowsPerPageResetsPage(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SetPage(1)
	tbl.SetRowsPerPage(20)
	assert.Equal(t, 0, tbl.State().Page)
	assert.Equal(t, 20, tbl.State().RowsPerPage)

	tbl.SetRowsPerPage(0)
	assert.Equal(t, 20, tbl.State().RowsPerPage)
	tbl.SetRowsPerPage(1 << 40)
	assert.Equal(t, 20, tbl.State().RowsPerPage)
	tbl.SetRowsPerPage(MaxRowsPerPage)
	assert.Equal(t, MaxRowsPerPage, tbl.State().RowsPerPage)
}

func TestFilterTotalUsesFilteredBase(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SetRowsPerPage(1)
	tbl.SetFilter("Fruit")
	page := tbl.Visible()
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
}

func TestToggleRowSelection(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())

	tbl.ToggleRowSelection(2)
	assert.Equal(t, []int64{2}, tbl.Selected())

	tbl.ToggleRowSelection(3)
	tbl.ToggleRowSelection(1)
	assert.Equal(t, []int64{2, 3, 1}, tbl.Selected())

	tbl.ToggleRowSelection(3)
	assert.Equal(t, []int64{2, 1}, tbl.Selected())

	tbl.ToggleRowSelection(2)
	tbl.ToggleRowSelection(1)
	assert.Empty(t, tbl.Selected())
}

func TestSelectAll(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.SelectAll(true)
	assert.Equal(t, []int64{1, 2, 3, 4}, tbl.Selected())
	assert.True(t, tbl.IsSelected(3))

	tbl.SelectAll(false)
	assert.Empty(t, tbl.Selected())
}

func TestReplaceDoesNotMerge(t *testing.T) {
	tbl := NewTable(sampleRows(), DefaultViewState())
	tbl.Replace([]Product{{ID: 7, Name: "Only"}})
	assert.Equal(t, []string{"Only"}, names(tbl.Rows()))
}

func TestNormalizeRepairsStoredState(t *testing.T) {
	tbl := NewTable(nil, ViewState{Order: "sideways", OrderBy: "bogus", RowsPerPage: -1, Page: -2})
	st := tbl.State()
	assert.Equal(t, OrderAsc, st.Order)
	assert.Equal(t, ColName, st.OrderBy)
	assert.Equal(t, 10, st.RowsPerPage)
	assert.Equal(t, 0, st.Page)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	c := NewController(nil, "", DefaultViewState())
	first := c.begin()
	second := c.begin()

	require.True(t, c.apply(second, []Product{{ID: 2, Name: "new"}}))
	assert.False(t, c.apply(first, []Product{{ID: 1, Name: "old"}}))

	_, err := c.Find(2)
	assert.NoError(t, err)
	_, err = c.Find(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVisibleColumnsHidesRestricted(t *testing.T) {
	for _, c := range VisibleColumns(PricingColumns, false) {
		assert.NotEqual(t, ColOptimizedPrice, c.Key)
	}
	full := VisibleColumns(PricingColumns, true)
	keys := make([]string, 0, len(full))
	for _, c := range full {
		keys = append(keys, c.Key)
	}
	assert.Contains(t, keys, ColOptimizedPrice)
}
