// Package render draws view payloads as PNG charts with go-chart.
package render

import (
	"errors"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/stwalsh4118/staylens/internal/views"
)

// Canvas defaults.
const (
	DefaultWidth  = 1024
	DefaultHeight = 640

	barWidth   = 18
	barSpacing = 6
)

var ErrNoData = errors.New("no data to render for this selection")

// PNG renders the payload. Map payloads become a scatter plot of the listing
// coordinates; every other payload becomes a bar chart.
func PNG(w io.Writer, p *views.Payload) error {
	if p == nil {
		return ErrNoData
	}
	switch {
	case len(p.Points) > 0:
		return scatter(w, p)
	case len(p.Bars) > 0:
		return bars(w, p)
	default:
		return ErrNoData
	}
}

func bars(w io.Writer, p *views.Payload) error {
	top := 0.0
	for _, b := range p.Bars {
		top = math.Max(top, b.Value)
	}
	if top <= 0 {
		top = 1
	}

	// color by the secondary value when every bar has one
	colorLo, colorHi, colored := secondaryRange(p.Bars)

	values := make([]chart.Value, 0, len(p.Bars))
	for _, b := range p.Bars {
		v := chart.Value{Label: b.Category, Value: b.Value}
		if colored {
			c := chart.Viridis(b.Secondary.V, colorLo, colorHi)
			v.Style = chart.Style{FillColor: c, StrokeColor: c}
		}
		values = append(values, v)
	}

	width := DefaultWidth
	if need := len(values)*(barWidth+barSpacing) + 160; need > width {
		width = need
	}

	bc := chart.BarChart{
		Title:      p.Title,
		Width:      width,
		Height:     DefaultHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.Style{TextRotationDegrees: 45},
		YAxis: chart.YAxis{
			Name:  p.YAxisTitle,
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: values,
	}
	return bc.Render(chart.PNG, w)
}

func secondaryRange(bars []views.Bar) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		if b.Secondary == nil || !b.Secondary.Defined {
			return 0, 0, false
		}
		lo = math.Min(lo, b.Secondary.V)
		hi = math.Max(hi, b.Secondary.V)
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi, true
}

func scatter(w io.Writer, p *views.Payload) error {
	xs := make([]float64, 0, len(p.Points)+1)
	ys := make([]float64, 0, len(p.Points)+1)
	colors := make([]float64, 0, len(p.Points)+1)
	for _, pt := range p.Points {
		xs = append(xs, pt.Lon)
		ys = append(ys, pt.Lat)
		colors = append(colors, pt.Color)
	}
	// a series needs two values to plot
	if len(xs) == 1 {
		xs, ys, colors = append(xs, xs[0]), append(ys, ys[0]), append(colors, colors[0])
	}

	cLo, cHi := bounds(colors)
	if cHi == cLo {
		cHi = cLo + 1
	}

	series := chart.ContinuousSeries{
		Name:    p.ColorAxisTitle,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    3,
			DotColorProvider: func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
				return chart.Viridis(colors[index], cLo, cHi)
			},
		},
	}

	c := chart.Chart{
		Title:      p.Title,
		Width:      DefaultWidth,
		Height:     DefaultWidth,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: p.XAxisTitle, Range: padded(xs)},
		YAxis:      chart.YAxis{Name: p.YAxisTitle, Range: padded(ys)},
		Series:     []chart.Series{series},
	}
	return c.Render(chart.PNG, w)
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func padded(values []float64) *chart.ContinuousRange {
	lo, hi := bounds(values)
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 0.01
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
