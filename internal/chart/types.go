package chart

// DualOpts customises the two-series line chart.
type DualOpts struct {
	Title       string
	Description string
	LabelA      string
	LabelB      string
	ColorA      string
	ColorB      string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
}

// Defaults for the forecast chart.
const (
	DefaultWidth   = 800
	DefaultHeight  = 240
	DefaultPadding = 36.0
	DefaultTicks   = 5
)
