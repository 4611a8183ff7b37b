package view

import (
	"bytes"
	"html/template"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestLoginPageRenders(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, engine.Render(rec, "pages/login.html", TemplateData{Title: "Login", CSRFToken: "tok"}))
	assert.Contains(t, rec.Body.String(), "<form")
	assert.Contains(t, rec.Body.String(), `value="tok"`)
}

func TestFuncMapFormatting(t *testing.T) {
	tpl := template.Must(template.New("t").Funcs(FuncMap()).Parse(
		`{{money .Price}}|{{optMoney .Missing}}|{{percent .Demand}}|{{count .Units}}|<a href="/products{{query "page" 2 "q" "a b"}}">next</a>`))
	demand := 42.5
	var buf bytes.Buffer
	require.NoError(t, tpl.Execute(&buf, map[string]any{
		"Price":   1234.5,
		"Missing": (*float64)(nil),
		"Demand":  &demand,
		"Units":   12000,
	}))
	parts := strings.Split(buf.String(), "|")
	require.Len(t, parts, 5)
	assert.Equal(t, "1,234.50", parts[0])
	assert.Equal(t, "—", parts[1])
	assert.Equal(t, "42.50%", parts[2])
	assert.Equal(t, "12,000", parts[3])
	assert.Contains(t, parts[4], `href="/products?`)
	assert.Contains(t, parts[4], "page=2")
	assert.Contains(t, parts[4], "q=a+b")
}
