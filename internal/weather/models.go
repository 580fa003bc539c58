package weather

import (
	"cloud.google.com/go/civil"
)

// City is a place we track, identified by a Meteostat station id and,
// optionally, coordinates for coordinate-based providers.
type City struct {
	Name      string   `yaml:"name" json:"name" validate:"required"`
	StationID string   `yaml:"station" json:"station" validate:"required"`
	Lat       *float64 `yaml:"lat,omitempty" json:"lat,omitempty"`
	Lon       *float64 `yaml:"lon,omitempty" json:"lon,omitempty"`
}

// Observation is one day of weather for one city. Measures are nil when the
// provider had no value for that day.
type Observation struct {
	City          string     `json:"city"`
	Date          civil.Date `json:"time"`
	AvgTemp       *float64   `json:"tavg"`
	MinTemp       *float64   `json:"tmin"`
	MaxTemp       *float64   `json:"tmax"`
	Precipitation *float64   `json:"prcp"`
	WindSpeed     *float64   `json:"wspd"`
	Pressure      *float64   `json:"pres"`
}

// Dataset is an ordered sequence of observations. Order is load order and is
// meaningful: LatestFor relies on it.
type Dataset []Observation

// LatestFor returns the last-appended observation for city. This is the last
// row in load order, not the row with the latest date.
func (d Dataset) LatestFor(city string) (Observation, bool) {
	for i := len(d) - 1; i >= 0; i-- {
		if d[i].City == city {
			return d[i], true
		}
	}
	return Observation{}, false
}

// Cities returns the distinct city names in order of first appearance.
func (d Dataset) Cities() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range d {
		if _, ok := seen[o.City]; ok {
			continue
		}
		seen[o.City] = struct{}{}
		out = append(out, o.City)
	}
	return out
}

// Float returns a pointer to v. Handy for building observations.
func Float(v float64) *float64 {
	return &v
}
