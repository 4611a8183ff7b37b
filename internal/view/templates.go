package view

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pricedesk/pricedesk/internal/shared"
	"github.com/pricedesk/pricedesk/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// Viewer describes the signed-in user for the header bar and for role-based
// column and action visibility.
type Viewer struct {
	LoggedIn  bool
	Name      string
	Role      string
	CanMutate bool
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Viewer      Viewer
	Data        any
}

var printer = message.NewPrinter(language.English)

// Money formats a currency amount with grouping and two decimals.
func Money(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// OptionalMoney formats v or a dash when absent.
func OptionalMoney(v *float64) string {
	if v == nil {
		return "—"
	}
	return Money(*v)
}

// Percent formats v as a percentage or a dash when absent.
func Percent(v *float64) string {
	if v == nil {
		return "—"
	}
	return printer.Sprintf("%.2f%%", *v)
}

// Count formats an integer with grouping.
func Count(v int) string {
	return printer.Sprintf("%d", v)
}

// Rating formats a score with one decimal.
func Rating(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// FuncMap is exposed so tests can parse ad-hoc templates with the same helpers.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"money":    Money,
		"optMoney": OptionalMoney,
		"percent":  Percent,
		"count":    Count,
		"rating":   Rating,
		"query": func(pairs ...any) template.URL {
			values := url.Values{}
			for i := 0; i+1 < len(pairs); i += 2 {
				values.Set(fmt.Sprint(pairs[i]), fmt.Sprint(pairs[i+1]))
			}
			return template.URL("?" + values.Encode())
		},
		"add": func(a, b int) int { return a + b },
		"seq": func(n int) []int {
			if n <= 0 {
				return nil
			}
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		},
	}
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(FuncMap()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderStatus writes status before rendering.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return e.templates.ExecuteTemplate(w, name, data)
}
