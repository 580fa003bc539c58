package weather

import (
	"fmt"
	"strconv"
)

// FormatSummary renders an observation with the fixed Markdown template used
// for per-city replies.
func FormatSummary(o Observation) string {
	return fmt.Sprintf(
		"🌤️ Latest weather in *%s* (%s):\n"+
			"🌡 Average temperature: %s°C\n"+
			"🧣 Min/max temperature: %s–%s°C\n"+
			"💧 Precipitation: %s mm\n"+
			"🌬 Wind speed: %s m/s\n"+
			"🔽 Pressure: %s hPa",
		o.City, o.Date,
		formatMeasure(o.AvgTemp),
		formatMeasure(o.MinTemp), formatMeasure(o.MaxTemp),
		formatMeasure(o.Precipitation),
		formatMeasure(o.WindSpeed),
		formatMeasure(o.Pressure),
	)
}

func formatMeasure(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
