package catalog

import (
	"errors"
	"sort"
	"strings"
)

// Product mirrors the backend product resource.
type Product struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	CostPrice      float64  `json:"cost_price"`
	SellingPrice   float64  `json:"selling_price"`
	OptimizedPrice *float64 `json:"optimized_price,omitempty"`
	StockAvailable int      `json:"stock_available"`
	UnitsSold      int      `json:"units_sold"`
	CustomerRating float64  `json:"customer_rating"`
	DemandForecast *float64 `json:"demand_forecast,omitempty"`
}

// ProductInput is the body of a create or full replace.
type ProductInput struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Description    string  `json:"description"`
	CostPrice      float64 `json:"cost_price"`
	SellingPrice   float64 `json:"selling_price"`
	StockAvailable int     `json:"stock_available"`
	UnitsSold      int     `json:"units_sold"`
	CustomerRating float64 `json:"customer_rating"`
}

// Input returns the mutable part of p.
func (p Product) Input() ProductInput {
	return ProductInput{
		Name:           p.Name,
		Category:       p.Category,
		Description:    p.Description,
		CostPrice:      p.CostPrice,
		SellingPrice:   p.SellingPrice,
		StockAvailable: p.StockAvailable,
		UnitsSold:      p.UnitsSold,
		CustomerRating: p.CustomerRating,
	}
}

// Column keys accepted by SetSort.
const (
	ColName           = "name"
	ColCategory       = "category"
	ColDescription    = "description"
	ColCostPrice      = "cost_price"
	ColSellingPrice   = "selling_price"
	ColOptimizedPrice = "optimized_price"
	ColStockAvailable = "stock_available"
	ColUnitsSold      = "units_sold"
	ColCustomerRating = "customer_rating"
	ColDemandForecast = "demand_forecast"
)

// Column describes one table header.
type Column struct {
	Key     string
	Label   string
	Numeric bool
	// Hidden from buyers.
	Restricted bool
}

// ManageColumns are the columns of the product management table.
var ManageColumns = []Column{
	{Key: ColName, Label: "Name"},
	{Key: ColCategory, Label: "Category"},
	{Key: ColCostPrice, Label: "Cost Price ($)", Numeric: true},
	{Key: ColDescription, Label: "Description"},
	{Key: ColStockAvailable, Label: "Stock Available (K)", Numeric: true},
	{Key: ColUnitsSold, Label: "Units Sold (K)", Numeric: true},
	{Key: ColCustomerRating, Label: "Rating", Numeric: true},
	{Key: ColSellingPrice, Label: "Selling Price ($)", Numeric: true},
	{Key: ColOptimizedPrice, Label: "Optimized Price ($)", Numeric: true, Restricted: true},
	{Key: ColDemandForecast, Label: "Demand (%)", Numeric: true},
}

// PricingColumns are the columns of the read-only pricing table.
var PricingColumns = []Column{
	{Key: ColName, Label: "Name"},
	{Key: ColCategory, Label: "Category"},
	{Key: ColCostPrice, Label: "Cost Price", Numeric: true},
	{Key: ColSellingPrice, Label: "Selling Price", Numeric: true},
	{Key: ColDescription, Label: "Description"},
	{Key: ColStockAvailable, Label: "Stock Available", Numeric: true},
	{Key: ColUnitsSold, Label: "Units Sold", Numeric: true},
	{Key: ColOptimizedPrice, Label: "Optimized Price", Numeric: true, Restricted: true},
}

// VisibleColumns drops restricted columns unless full is set.
func VisibleColumns(cols []Column, full bool) []Column {
	if full {
		return cols
	}
	out := make([]Column, 0, len(cols))
	for _, c := range cols {
		if !c.Restricted {
			out = append(out, c)
		}
	}
	return out
}

// Categories returns the distinct, sorted, non-empty categories of rows.
func Categories(rows []Product) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0)
	for _, p := range rows {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// ErrNotFound is returned when an id is not present in the loaded collection.
var ErrNotFound = errors.New("catalog: product not found")

// ValidationError carries per-field messages from form coercion.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "catalog: invalid " + strings.Join(keys, ", ")
}

// Result is the outcome of a dialog submit. A dialog closes only when OK.
type Result struct {
	OK          bool
	Err         error
	FieldErrors map[string]string
	// Product is the backend response on create or edit.
	Product *Product
}

func failed(err error) Result {
	res := Result{Err: err}
	var verr *ValidationError
	if errors.As(err, &verr) {
		res.FieldErrors = verr.Fields
	}
	return res
}
