package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"cloud.google.com/go/civil"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

const meteostatBaseURL = "https://meteostat.p.rapidapi.com/stations/daily"

// MeteostatProvider implements weather.Provider using the Meteostat daily
// station endpoint (served through RapidAPI).
type MeteostatProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *resilientClient
}

func NewMeteostatProvider(client *http.Client, apiKey string, opts ...Option) *MeteostatProvider {
	s := defaultSettings(client, meteostatBaseURL, opts)

	return &MeteostatProvider{
		name:    "meteostat",
		apiKey:  apiKey,
		baseURL: s.baseURL,
		client:  newResilientClient("meteostat", s.httpCfg),
	}
}

func (p *MeteostatProvider) Name() string {
	return p.name
}

func (p *MeteostatProvider) FetchDaily(ctx context.Context, city weather.City, from, to civil.Date) ([]weather.Observation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("meteostat api key is not configured")
	}
	if city.StationID == "" {
		return nil, fmt.Errorf("meteostat requires a station id for %s", city.Name)
	}

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("meteostat base url: %w", err)
	}
	host := u.Host

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("station", city.StationID)
		values.Set("start", from.String())
		values.Set("end", to.String())

		req, err := http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-RapidAPI-Key", p.apiKey)
		req.Header.Set("X-RapidAPI-Host", host)
		return req, nil
	}

	resp, err := p.client.do(ctx, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("meteostat %s: %w", city.Name, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Data []struct {
			Date string   `json:"date"`
			Tavg *float64 `json:"tavg"`
			Tmin *float64 `json:"tmin"`
			Tmax *float64 `json:"tmax"`
			Prcp *float64 `json:"prcp"`
			Wspd *float64 `json:"wspd"`
			Pres *float64 `json:"pres"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("meteostat %s: decode: %w", city.Name, err)
	}

	out := make([]weather.Observation, 0, len(payload.Data))
	for _, d := range payload.Data {
		date, err := civil.ParseDate(d.Date)
		if err != nil {
			return nil, fmt.Errorf("meteostat %s: date %q: %w", city.Name, d.Date, err)
		}
		out = append(out, weather.Observation{
			City:          city.Name,
			Date:          date,
			AvgTemp:       d.Tavg,
			MinTemp:       d.Tmin,
			MaxTemp:       d.Tmax,
			Precipitation: d.Prcp,
			// Meteostat reports km/h.
			WindSpeed: kphToMS(d.Wspd),
			Pressure:  d.Pres,
		})
	}
	return out, nil
}

func kphToMS(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return weather.Float(*v / 3.6)
}
