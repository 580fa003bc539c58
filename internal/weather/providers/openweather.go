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

const openWeatherDaySummaryURL = "https://api.openweathermap.org/data/3.0/onecall/day_summary"

// OpenWeatherProvider implements weather.Provider using the One Call
// day_summary endpoint. It returns one day per call, so a monthly range
// costs about forty requests per city; the rate limiter paces them.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *resilientClient
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	s := defaultSettings(client, openWeatherDaySummaryURL, opts)

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: s.baseURL,
		client:  newResilientClient("openweather", s.httpCfg),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) FetchDaily(ctx context.Context, city weather.City, from, to civil.Date) ([]weather.Observation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}
	if city.Lat == nil || city.Lon == nil {
		return nil, fmt.Errorf("openweather requires latitude and longitude for %s", city.Name)
	}

	var out []weather.Observation
	for day := from; !day.After(to); day = day.AddDays(1) {
		obs, ok, err := p.fetchDay(ctx, city, day)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, obs)
		}
	}
	return out, nil
}

func (p *OpenWeatherProvider) fetchDay(ctx context.Context, city weather.City, day civil.Date) (weather.Observation, bool, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lat", strconv.FormatFloat(*city.Lat, 'f', 4, 64))
		values.Set("lon", strconv.FormatFloat(*city.Lon, 'f', 4, 64))
		values.Set("date", day.String())

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := p.client.do(ctx, buildRequest)
	if err != nil {
		return weather.Observation{}, false, fmt.Errorf("openweather %s %s: %w", city.Name, day, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Date        string `json:"date"`
		Temperature struct {
			Min       *float64 `json:"min"`
			Max       *float64 `json:"max"`
			Morning   *float64 `json:"morning"`
			Afternoon *float64 `json:"afternoon"`
			Evening   *float64 `json:"evening"`
			Night     *float64 `json:"night"`
		} `json:"temperature"`
		Precipitation struct {
			Total *float64 `json:"total"`
		} `json:"precipitation"`
		Pressure struct {
			Afternoon *float64 `json:"afternoon"`
		} `json:"pressure"`
		Wind struct {
			Max struct {
				Speed *float64 `json:"speed"`
			} `json:"max"`
		} `json:"wind"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, false, fmt.Errorf("openweather %s %s: decode: %w", city.Name, day, err)
	}
	if payload.Date == "" {
		return weather.Observation{}, false, nil
	}

	t := payload.Temperature
	return weather.Observation{
		City:          city.Name,
		Date:          day,
		AvgTemp:       mean([]*float64{t.Morning, t.Afternoon, t.Evening, t.Night}),
		MinTemp:       t.Min,
		MaxTemp:       t.Max,
		Precipitation: payload.Precipitation.Total,
		// Only the daily maximum is published.
		WindSpeed: payload.Wind.Max.Speed,
		Pressure:  payload.Pressure.Afternoon,
	}, true, nil
}
