package chart

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
)

// ErrEmptySeries is returned when there is nothing to plot.
var ErrEmptySeries = errors.New("chart: series required")

// Domain returns the shared y-domain of a and b: from zero up to the largest
// value in either series. A flat domain is widened to [0, 1].
func Domain(a, b []float64) (float64, float64) {
	maxVal := 0.0
	for _, s := range [][]float64{a, b} {
		for _, v := range s {
			if v > maxVal {
				maxVal = v
			}
		}
	}
	if almostEqual(maxVal, 0) {
		maxVal = 1
	}
	return 0, maxVal
}

// Dual renders two time-aligned series as lines on one y scale. Point i of
// both series shares x position i. The series must have equal length.
func Dual(width, height int, a, b []float64, opts DualOpts) (template.HTML, error) {
	if len(a) == 0 {
		return "", ErrEmptySeries
	}
	if len(a) != len(b) {
		return "", fmt.Errorf("chart: series lengths differ (%d vs %d)", len(a), len(b))
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}
	colorA := fallback(opts.ColorA, "#2563eb")
	colorB := fallback(opts.ColorB, "#dc2626")
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", errors.New("chart: viewport too small")
	}

	minVal, maxVal := Domain(a, b)
	scale := chartHeight / (maxVal - minVal)
	xAt := func(i int) float64 {
		if len(a) == 1 {
			return padding + chartWidth/2
		}
		return padding + float64(i)*chartWidth/float64(len(a)-1)
	}
	yAt := func(v float64) float64 {
		return padding + chartHeight - (v-minVal)*scale
	}
	path := func(series []float64) string {
		var p strings.Builder
		for i, v := range series {
			cmd := " L"
			if i == 0 {
				cmd = "M"
			}
			p.WriteString(fmt.Sprintf("%s%.2f %.2f", cmd, xAt(i), yAt(v)))
		}
		return p.String()
	}

	titleID := makeID(opts.Title, "dual-title")
	descID := makeID(opts.Title, "dual-desc")

	var out strings.Builder
	out.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\" data-ymax=\"%s\">", width, height, titleID, descID, strconv.FormatFloat(maxVal, 'g', -1, 64)))
	out.WriteString(fmt.Sprintf("<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Forecast"))))
	out.WriteString(fmt.Sprintf("<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Forecast series"))))

	for i := 0; i <= tickCount; i++ {
		ratio := float64(i) / float64(tickCount)
		y := padding + chartHeight - ratio*chartHeight
		value := minVal + (maxVal-minVal)*ratio
		out.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\" aria-hidden=\"true\"></line>", padding, y, padding+chartWidth, y, gridColor))
		out.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", padding-6, y+4, axisColor, template.HTMLEscapeString(formatTick(value))))
	}

	out.WriteString(fmt.Sprintf("<g stroke=\"%s\" aria-label=\"Axes\">", axisColor))
	out.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", padding, padding, padding, padding+chartHeight))
	out.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", padding, padding+chartHeight, padding+chartWidth, padding+chartHeight))
	out.WriteString("</g>")

	out.WriteString(fmt.Sprintf("<path class=\"series-a\" d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" stroke-linejoin=\"round\" stroke-linecap=\"round\"></path>", path(a), colorA))
	out.WriteString(fmt.Sprintf("<path class=\"series-b\" d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" stroke-linejoin=\"round\" stroke-linecap=\"round\"></path>", path(b), colorB))

	for i := range a {
		out.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%d</text>", xAt(i), padding+chartHeight+14, axisColor, i+1))
	}

	// Legend, bottom right.
	lx := padding + chartWidth - 100
	ly := padding + chartHeight - 36
	out.WriteString(fmt.Sprintf("<g font-size=\"10\" transform=\"translate(%.2f,%.2f)\">", lx, ly))
	out.WriteString(fmt.Sprintf("<rect x=\"0\" y=\"0\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", colorA))
	out.WriteString(fmt.Sprintf("<text x=\"15\" y=\"9\">%s</text>", template.HTMLEscapeString(fallback(opts.LabelA, "Series A"))))
	out.WriteString(fmt.Sprintf("<rect x=\"0\" y=\"20\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", colorB))
	out.WriteString(fmt.Sprintf("<text x=\"15\" y=\"29\">%s</text>", template.HTMLEscapeString(fallback(opts.LabelB, "Series B"))))
	out.WriteString("</g>")

	out.WriteString("</svg>")
	return template.HTML(out.String()), nil
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
