package chart

import (
	"bytes"
	"image/png"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

func TestTemperatureChart_RendersPNG(t *testing.T) {
	d := weather.Dataset{
		{City: "Moscow", Date: civil.Date{Year: 2024, Month: 1, Day: 5}, AvgTemp: weather.Float(3)},
		{City: "Moscow", Date: civil.Date{Year: 2024, Month: 1, Day: 6}, AvgTemp: weather.Float(-2)},
		{City: "Adler", Date: civil.Date{Year: 2024, Month: 1, Day: 5}, AvgTemp: weather.Float(9)},
		{City: "Adler", Date: civil.Date{Year: 2024, Month: 1, Day: 6}},
	}

	c := NewTemperatureChart()
	c.Width, c.Height = 4*vg.Inch, 2*vg.Inch

	b, err := c.Render(d)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestTemperatureChart_NothingToPlot(t *testing.T) {
	d := weather.Dataset{
		{City: "Moscow", Date: civil.Date{Year: 2024, Month: 1, Day: 5}},
	}

	_, err := NewTemperatureChart().Render(d)
	assert.ErrorIs(t, err, ErrNothingToPlot)

	_, err = NewTemperatureChart().Render(nil)
	assert.ErrorIs(t, err, ErrNothingToPlot)
}
