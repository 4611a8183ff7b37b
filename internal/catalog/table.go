package catalog

import (
	"sort"
	"strings"

	"github.com/pricedesk/pricedesk/internal/shared"
)

// Order is the sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// FilterMode records which filter operation ran last.
type FilterMode string

const (
	FilterNone     FilterMode = ""
	FilterSearch   FilterMode = "search"
	FilterCategory FilterMode = "category"
)

// RowsPerPageOptions are the page sizes offered by the table control.
var RowsPerPageOptions = []int{10, 20, 30}

// MaxRowsPerPage bounds the page size accepted from a request.
const MaxRowsPerPage = 100

// ViewState is the per-table UI state. It is persisted in the browser
// session between requests and never sent to the backend.
type ViewState struct {
	Order          Order      `json:"order"`
	OrderBy        string     `json:"order_by"`
	Page           int        `json:"page"`
	RowsPerPage    int        `json:"rows_per_page"`
	SearchQuery    string     `json:"search,omitempty"`
	FilterCategory string     `json:"category,omitempty"`
	Filter         FilterMode `json:"filter,omitempty"`
	Selected       []int64    `json:"selected,omitempty"`
}

// DefaultViewState is the state of a table never touched before.
func DefaultViewState() ViewState {
	return ViewState{Order: OrderAsc, OrderBy: ColName, RowsPerPage: shared.DefaultPerPage}
}

// IsFiltered reports whether the visible base is a filtered subset.
func (s ViewState) IsFiltered() bool {
	switch s.Filter {
	case FilterSearch:
		return s.SearchQuery != ""
	case FilterCategory:
		return s.FilterCategory != ""
	}
	return false
}

// Page is one rendered slice of the table.
type Page struct {
	Rows []Product
	// Total is the size of the filtered base, not of the full collection.
	Total       int
	Page        int
	RowsPerPage int
	// EmptyRows pads the last page up to RowsPerPage.
	EmptyRows  int
	Pagination shared.Pagination
}

// Table derives visible rows from a collection and a ViewState. It holds no
// I/O and is not safe for concurrent use.
type Table struct {
	rows  []Product
	state ViewState
}

// NewTable builds a Table over rows.
func NewTable(rows []Product, state ViewState) *Table {
	t := &Table{state: state}
	t.normalize()
	t.Replace(rows)
	return t
}

// Replace swaps the whole collection. Rows are never merged.
func (t *Table) Replace(rows []Product) {
	t.rows = append([]Product(nil), rows...)
}

// Rows returns the full collection.
func (t *Table) Rows() []Product { return t.rows }

// State returns the current view state.
func (t *Table) State() ViewState { return t.state }

// SetSearch filters to rows whose name, description or category contains q,
// ignoring case. It replaces any category filter.
func (t *Table) SetSearch(q string) {
	t.state.SearchQuery = q
	t.state.FilterCategory = ""
	t.state.Filter = FilterSearch
	if q == "" {
		t.state.Filter = FilterNone
	}
}

// SetFilter filters to rows of exactly category. The empty string clears the
// filter. It replaces any search.
func (t *Table) SetFilter(category string) {
	t.state.FilterCategory = category
	t.state.SearchQuery = ""
	t.state.Filter = FilterCategory
	if category == "" {
		t.state.Filter = FilterNone
	}
}

// SetSort toggles direction when key is already the sort column and sorts
// ascending by key otherwise. Unknown keys are ignored.
func (t *Table) SetSort(key string) {
	if !Sortable(key) {
		return
	}
	if t.state.OrderBy == key && t.state.Order == OrderAsc {
		t.state.Order = OrderDesc
	} else {
		t.state.Order = OrderAsc
	}
	t.state.OrderBy = key
}

// SetPage moves the cursor. Negative pages clamp to 0.
func (t *Table) SetPage(n int) {
	if n < 0 {
		n = 0
	}
	t.state.Page = n
}

// SetRowsPerPage changes the page size and resets the cursor. Sizes outside
// 1..MaxRowsPerPage are ignored.
func (t *Table) SetRowsPerPage(n int) {
	if n <= 0 || n > MaxRowsPerPage {
		return
	}
	t.state.RowsPerPage = n
	t.state.Page = 0
}

// ToggleRowSelection adds id to the selection, or removes it when it is
// already selected.
func (t *Table) ToggleRowSelection(id int64) {
	if idx := indexOf(t.state.Selected, id); idx >= 0 {
		t.state.Selected = append(t.state.Selected[:idx:idx], t.state.Selected[idx+1:]...)
		return
	}
	t.state.Selected = append(t.state.Selected, id)
}

// SelectAll selects every loaded row or clears the selection.
func (t *Table) SelectAll(on bool) {
	if !on {
		t.state.Selected = nil
		return
	}
	ids := make([]int64, 0, len(t.rows))
	for _, p := range t.rows {
		ids = append(ids, p.ID)
	}
	t.state.Selected = ids
}

// Select replaces the selection.
func (t *Table) Select(ids ...int64) {
	t.state.Selected = append([]int64(nil), ids...)
}

// IsSelected reports whether id is selected.
func (t *Table) IsSelected(id int64) bool {
	return indexOf(t.state.Selected, id) >= 0
}

// Selected returns the selected ids.
func (t *Table) Selected() []int64 {
	return append([]int64(nil), t.state.Selected...)
}

// Categories lists the distinct categories of the full collection.
func (t *Table) Categories() []string { return Categories(t.rows) }

// Base returns the filtered collection, or the full one when unfiltered.
func (t *Table) Base() []Product {
	if !t.state.IsFiltered() {
		return t.rows
	}
	out := make([]Product, 0, len(t.rows))
	switch t.state.Filter {
	case FilterSearch:
		q := strings.ToLower(t.state.SearchQuery)
		for _, p := range t.rows {
			if strings.Contains(strings.ToLower(p.Name), q) ||
				strings.Contains(strings.ToLower(p.Description), q) ||
				strings.Contains(strings.ToLower(p.Category), q) {
				out = append(out, p)
			}
		}
	case FilterCategory:
		for _, p := range t.rows {
			if p.Category == t.state.FilterCategory {
				out = append(out, p)
			}
		}
	}
	return out
}

// Sorted returns the base stably sorted by the current order.
func (t *Table) Sorted() []Product {
	base := t.Base()
	sorted := append([]Product(nil), base...)
	key, desc := t.state.OrderBy, t.state.Order == OrderDesc
	sort.SliceStable(sorted, func(i, j int) bool {
		if desc {
			return less(sorted[j], sorted[i], key)
		}
		return less(sorted[i], sorted[j], key)
	})
	return sorted
}

// Visible slices the sorted base to the current page.
func (t *Table) Visible() Page {
	sorted := t.Sorted()
	pg := shared.NewPagination(t.state.Page, t.state.RowsPerPage, len(sorted))
	start, end := pg.Bounds()
	empty := pg.PerPage - pg.Shown()
	return Page{
		Rows:        sorted[start:end],
		Total:       len(sorted),
		Page:        pg.Page,
		RowsPerPage: pg.PerPage,
		EmptyRows:   empty,
		Pagination:  pg,
	}
}

func (t *Table) normalize() {
	def := DefaultViewState()
	if t.state.Order != OrderAsc && t.state.Order != OrderDesc {
		t.state.Order = def.Order
	}
	if !Sortable(t.state.OrderBy) {
		t.state.OrderBy = def.OrderBy
	}
	if t.state.RowsPerPage <= 0 || t.state.RowsPerPage > MaxRowsPerPage {
		t.state.RowsPerPage = def.RowsPerPage
	}
	if t.state.Page < 0 {
		t.state.Page = 0
	}
}

// Sortable reports whether key names a sortable column.
func Sortable(key string) bool {
	switch key {
	case ColName, ColCategory, ColDescription, ColCostPrice, ColSellingPrice,
		ColOptimizedPrice, ColStockAvailable, ColUnitsSold, ColCustomerRating, ColDemandForecast:
		return true
	}
	return false
}

// less compares raw field values. Strings compare bytewise. An absent
// optional value sorts before any present one.
func less(a, b Product, key string) bool {
	switch key {
	case ColName:
		return a.Name < b.Name
	case ColCategory:
		return a.Category < b.Category
	case ColDescription:
		return a.Description < b.Description
	case ColCostPrice:
		return a.CostPrice < b.CostPrice
	case ColSellingPrice:
		return a.SellingPrice < b.SellingPrice
	case ColStockAvailable:
		return a.StockAvailable < b.StockAvailable
	case ColUnitsSold:
		return a.UnitsSold < b.UnitsSold
	case ColCustomerRating:
		return a.CustomerRating < b.CustomerRating
	case ColOptimizedPrice:
		return lessOptional(a.OptimizedPrice, b.OptimizedPrice)
	case ColDemandForecast:
		return lessOptional(a.DemandForecast, b.DemandForecast)
	}
	return false
}

func lessOptional(a, b *float64) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	}
	return *a < *b
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
