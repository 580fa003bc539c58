package weather

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_LatestForUsesLoadOrder(t *testing.T) {
	d := Dataset{
		{City: "Moscow", Date: civil.Date{Year: 2024, Month: 1, Day: 5}, AvgTemp: Float(3)},
		{City: "Moscow", Date: civil.Date{Year: 2024, Month: 1, Day: 6}, AvgTemp: Float(-2)},
		{City: "Adler", Date: civil.Date{Year: 2024, Month: 1, Day: 7}, AvgTemp: Float(10)},
		// appended last but chronologically older
		{City: "Moscow", Date: civil.Date{Year: 2024, Month: 1, Day: 1}, AvgTemp: Float(-7)},
	}

	got, ok := d.LatestFor("Moscow")
	require.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 1}, got.Date)

	got, ok = d[:2].LatestFor("Moscow")
	require.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 6}, got.Date)
}

func TestDataset_LatestForMissingCity(t *testing.T) {
	_, ok := sampleDataset().LatestFor("Saint Petersburg")
	assert.False(t, ok)
}

func TestDataset_Cities(t *testing.T) {
	assert.Equal(t, []string{"Moscow", "Adler"}, sampleDataset().Cities())
}

func TestFormatSummary(t *testing.T) {
	msg := FormatSummary(Observation{
		City:          "Moscow",
		Date:          civil.Date{Year: 2024, Month: 1, Day: 6},
		AvgTemp:       Float(-2),
		MinTemp:       Float(-4.5),
		MaxTemp:       Float(0.1),
		Precipitation: Float(1.2),
		WindSpeed:     nil,
		Pressure:      Float(1015),
	})

	assert.Contains(t, msg, "*Moscow* (2024-01-06)")
	assert.Contains(t, msg, "Average temperature: -2°C")
	assert.Contains(t, msg, "Min/max temperature: -4.5–0.1°C")
	assert.Contains(t, msg, "Precipitation: 1.2 mm")
	assert.Contains(t, msg, "Wind speed: n/a m/s")
	assert.Contains(t, msg, "Pressure: 1015 hPa")
}
