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

const weatherAPIHistoryURL = "https://api.weatherapi.com/v1/history.json"

// weatherAPIMaxSpan is the longest range, in days, one history call accepts.
const weatherAPIMaxSpan = 30

// WeatherAPIProvider implements weather.Provider using the WeatherAPI.com
// history endpoint. Ranges longer than a month are fetched in chunks.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *resilientClient
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts ...Option) *WeatherAPIProvider {
	s := defaultSettings(client, weatherAPIHistoryURL, opts)

	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: s.baseURL,
		client:  newResilientClient("weatherapi", s.httpCfg),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) FetchDaily(ctx context.Context, city weather.City, from, to civil.Date) ([]weather.Observation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi api key is not configured")
	}

	// WeatherAPI uses "q" for location; it accepts a name or "lat,lon".
	q := city.Name
	if city.Lat != nil && city.Lon != nil {
		q = strconv.FormatFloat(*city.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(*city.Lon, 'f', 4, 64)
	}

	var out []weather.Observation
	for start := from; !start.After(to); {
		end := start.AddDays(weatherAPIMaxSpan - 1)
		if end.After(to) {
			end = to
		}

		chunk, err := p.fetchRange(ctx, city.Name, q, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		start = end.AddDays(1)
	}
	return out, nil
}

func (p *WeatherAPIProvider) fetchRange(ctx context.Context, name, q string, from, to civil.Date) ([]weather.Observation, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", q)
		values.Set("dt", from.String())
		values.Set("end_dt", to.String())

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := p.client.do(ctx, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("weatherapi %s: %w", name, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Forecast struct {
			Days []struct {
				Date string `json:"date"`
				Day  struct {
					AvgTempC    *float64 `json:"avgtemp_c"`
					MinTempC    *float64 `json:"mintemp_c"`
					MaxTempC    *float64 `json:"maxtemp_c"`
					TotalPrecip *float64 `json:"totalprecip_mm"`
				} `json:"day"`
				Hours []struct {
					WindKph    *float64 `json:"wind_kph"`
					PressureMb *float64 `json:"pressure_mb"`
				} `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("weatherapi %s: decode: %w", name, err)
	}

	out := make([]weather.Observation, 0, len(payload.Forecast.Days))
	for _, d := range payload.Forecast.Days {
		date, err := civil.ParseDate(d.Date)
		if err != nil {
			return nil, fmt.Errorf("weatherapi %s: date %q: %w", name, d.Date, err)
		}

		// The daily block has no mean wind or pressure; derive them from hours.
		var wind, pressure []*float64
		for _, h := range d.Hours {
			wind = append(wind, h.WindKph)
			pressure = append(pressure, h.PressureMb)
		}

		out = append(out, weather.Observation{
			City:          name,
			Date:          date,
			AvgTemp:       d.Day.AvgTempC,
			MinTemp:       d.Day.MinTempC,
			MaxTemp:       d.Day.MaxTempC,
			Precipitation: d.Day.TotalPrecip,
			WindSpeed:     kphToMS(mean(wind)),
			Pressure:      mean(pressure),
		})
	}
	return out, nil
}

// mean skips nil values and returns nil when nothing is left.
func mean(values []*float64) *float64 {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	return weather.Float(sum / float64(n))
}
