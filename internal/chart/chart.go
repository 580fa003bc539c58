// Package chart renders datasets as PNG line charts.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

// ErrNothingToPlot is returned when no row carries an average temperature.
var ErrNothingToPlot = errors.New("chart: no average temperatures to plot")

const defaultTitle = "Average temperature (°C) over the last month"

// TemperatureChart draws average temperature per day, one line per city.
type TemperatureChart struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

// NewTemperatureChart returns a renderer with the default 14x7 inch canvas.
func NewTemperatureChart() *TemperatureChart {
	return &TemperatureChart{
		Title:  defaultTitle,
		Width:  14 * vg.Inch,
		Height: 7 * vg.Inch,
	}
}

// Render returns the chart as PNG bytes. Cities are drawn in order of first
// appearance; days without an average temperature are skipped.
func (c *TemperatureChart) Render(d weather.Dataset) ([]byte, error) {
	series := make(map[string]plotter.XYs)
	for _, o := range d {
		if o.AvgTemp == nil {
			continue
		}
		x := float64(o.Date.In(time.UTC).Unix())
		series[o.City] = append(series[o.City], plotter.XY{X: x, Y: *o.AvgTemp})
	}
	if len(series) == 0 {
		return nil, ErrNothingToPlot
	}

	p := plot.New()
	p.Title.Text = c.Title
	p.Y.Label.Text = "°C"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	i := 0
	for _, city := range d.Cities() {
		pts, ok := series[city]
		if !ok {
			continue
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("chart: series %s: %w", city, err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)

		p.Add(line, points)
		p.Legend.Add(city, line, points)
		i++
	}

	w, err := p.WriterTo(c.Width, c.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("chart: create png writer: %w", err)
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
