package weather

import (
	"context"

	"cloud.google.com/go/civil"
)

// Provider abstracts a source of daily observations (e.g. Meteostat, Open-Meteo).
// Implementations return an empty slice, not an error, when the source simply
// has no data for the range.
type Provider interface {
	Name() string
	FetchDaily(ctx context.Context, city City, from, to civil.Date) ([]Observation, error)
}
