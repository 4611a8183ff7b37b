package catalog

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// DefaultRating is what the backend assigns when no rating is given.
const DefaultRating = 4.0

// ProductForm holds dialog fields exactly as typed. Nothing is parsed until
// Coerce runs at submit time.
type ProductForm struct {
	Name           string
	Category       string
	Description    string
	CostPrice      string
	SellingPrice   string
	StockAvailable string
	UnitsSold      string
	CustomerRating string
}

// FormFromValues reads a submitted dialog.
func FormFromValues(v url.Values) ProductForm {
	return ProductForm{
		Name:           v.Get("name"),
		Category:       v.Get("category"),
		Description:    v.Get("description"),
		CostPrice:      v.Get("cost_price"),
		SellingPrice:   v.Get("selling_price"),
		StockAvailable: v.Get("stock_available"),
		UnitsSold:      v.Get("units_sold"),
		CustomerRating: v.Get("customer_rating"),
	}
}

// FormFromProduct prefills an edit dialog.
func FormFromProduct(p Product) ProductForm {
	return ProductForm{
		Name:           p.Name,
		Category:       p.Category,
		Description:    p.Description,
		CostPrice:      strconv.FormatFloat(p.CostPrice, 'f', -1, 64),
		SellingPrice:   strconv.FormatFloat(p.SellingPrice, 'f', -1, 64),
		StockAvailable: strconv.Itoa(p.StockAvailable),
		UnitsSold:      strconv.Itoa(p.UnitsSold),
		CustomerRating: strconv.FormatFloat(p.CustomerRating, 'f', -1, 64),
	}
}

// Coerce converts prices and rating to decimals and quantities to integers.
// Name and category are required; negative amounts are rejected. Empty
// numeric fields become zero, and an empty rating becomes DefaultRating.
func (f ProductForm) Coerce() (ProductInput, error) {
	errs := make(map[string]string)
	in := ProductInput{
		Name:        strings.TrimSpace(f.Name),
		Category:    strings.TrimSpace(f.Category),
		Description: strings.TrimSpace(f.Description),
	}
	if in.Name == "" {
		errs[ColName] = "Name is required."
	}
	if in.Category == "" {
		errs[ColCategory] = "Category is required."
	}
	in.CostPrice = decimal(errs, ColCostPrice, f.CostPrice, 0)
	in.SellingPrice = decimal(errs, ColSellingPrice, f.SellingPrice, 0)
	in.CustomerRating = decimal(errs, ColCustomerRating, f.CustomerRating, DefaultRating)
	in.StockAvailable = integer(errs, ColStockAvailable, f.StockAvailable)
	in.UnitsSold = integer(errs, ColUnitsSold, f.UnitsSold)
	if len(errs) > 0 {
		return ProductInput{}, &ValidationError{Fields: errs}
	}
	return in, nil
}

func decimal(errs map[string]string, field, raw string, empty float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return empty
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		errs[field] = "Enter a number."
		return 0
	}
	if v < 0 {
		errs[field] = "Must not be negative."
		return 0
	}
	return v
}

func integer(errs map[string]string, field, raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		errs[field] = "Enter a whole number."
		return 0
	}
	if v < 0 {
		errs[field] = "Must not be negative."
		return 0
	}
	return v
}
