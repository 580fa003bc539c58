package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"cloud.google.com/go/civil"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

const openMeteoArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

const openMeteoDaily = "temperature_2m_mean,temperature_2m_min,temperature_2m_max,precipitation_sum,wind_speed_10m_mean,pressure_msl_mean"

// OpenMeteoProvider implements weather.Provider using the Open-Meteo
// historical archive. It needs coordinates instead of a station id.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *resilientClient
}

func NewOpenMeteoProvider(client *http.Client, opts ...Option) *OpenMeteoProvider {
	s := defaultSettings(client, openMeteoArchiveURL, opts)

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: s.baseURL,
		client:  newResilientClient("openmeteo", s.httpCfg),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchDaily(ctx context.Context, city weather.City, from, to civil.Date) ([]weather.Observation, error) {
	if city.Lat == nil || city.Lon == nil {
		return nil, fmt.Errorf("openmeteo requires latitude and longitude for %s", city.Name)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(*city.Lat, 'f', 4, 64))
		values.Set("longitude", strconv.FormatFloat(*city.Lon, 'f', 4, 64))
		values.Set("start_date", from.String())
		values.Set("end_date", to.String())
		values.Set("daily", openMeteoDaily)
		values.Set("wind_speed_unit", "ms")
		values.Set("timezone", "auto")

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := p.client.do(ctx, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("openmeteo %s: %w", city.Name, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time     []string   `json:"time"`
			Mean     []*float64 `json:"temperature_2m_mean"`
			Min      []*float64 `json:"temperature_2m_min"`
			Max      []*float64 `json:"temperature_2m_max"`
			Precip   []*float64 `json:"precipitation_sum"`
			Wind     []*float64 `json:"wind_speed_10m_mean"`
			Pressure []*float64 `json:"pressure_msl_mean"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("openmeteo %s: decode: %w", city.Name, err)
	}

	daily := payload.Daily
	out := make([]weather.Observation, 0, len(daily.Time))
	for i, ts := range daily.Time {
		date, err := civil.ParseDate(ts)
		if err != nil {
			return nil, fmt.Errorf("openmeteo %s: date %q: %w", city.Name, ts, err)
		}
		out = append(out, weather.Observation{
			City:          city.Name,
			Date:          date,
			AvgTemp:       at(daily.Mean, i),
			MinTemp:       at(daily.Min, i),
			MaxTemp:       at(daily.Max, i),
			Precipitation: at(daily.Precip, i),
			WindSpeed:     at(daily.Wind, i),
			Pressure:      at(daily.Pressure, i),
		})
	}
	return out, nil
}

// at tolerates series shorter than the time axis.
func at(series []*float64, i int) *float64 {
	if i < len(series) {
		return series[i]
	}
	return nil
}
