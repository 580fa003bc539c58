package pipeline

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

// Ingest fetches every configured city from the first day of the previous
// month up to runDate, and writes the combined dataset to the dated path and
// to LatestPath. The dated path is returned as the handle for Notify.
//
// A city with no rows is skipped with a warning. A provider error aborts the
// stage: a partial dataset would silently replace the latest one.
func (p *Pipeline) Ingest(ctx context.Context, runDate civil.Date) (Path, error) {
	from := PreviousMonthStart(runDate)

	var dataset weather.Dataset
	for _, city := range p.cities {
		rows, err := p.provider.FetchDaily(ctx, city, from, runDate)
		if err != nil {
			return "", fmt.Errorf("fetch %s from %s: %w", city.Name, p.provider.Name(), err)
		}

		if len(rows) == 0 {
			p.m.SkippedCities.WithLabelValues(city.Name).Inc()
			p.l.Warning("no data for city, skipping", map[string]any{
				"city":  city.Name,
				"from":  from.String(),
				"to":    runDate.String(),
				"stage": stageIngest,
			})
			continue
		}

		p.l.Debug("fetched city", map[string]any{"city": city.Name, "rows": len(rows)})
		dataset = append(dataset, rows...)
	}

	if len(dataset) == 0 {
		return "", ErrNoData
	}

	payload, err := weather.Encode(dataset)
	if err != nil {
		return "", fmt.Errorf("encode dataset: %w", err)
	}

	dated := DatedPath(runDate)
	// Both writes overwrite so a retried stage can replace its own output.
	if err := p.store.Write(ctx, dated.String(), payload, true); err != nil {
		return "", fmt.Errorf("write %s: %w", dated, err)
	}
	if err := p.store.Write(ctx, LatestPath.String(), payload, true); err != nil {
		return "", fmt.Errorf("write %s: %w", LatestPath, err)
	}

	p.m.RowsIngested.Set(float64(len(dataset)))
	p.l.Info("dataset stored", map[string]any{
		"path":   dated.String(),
		"rows":   len(dataset),
		"cities": len(dataset.Cities()),
	})
	return dated, nil
}

// PreviousMonthStart returns the first day of the month before d.
func PreviousMonthStart(d civil.Date) civil.Date {
	t := time.Date(d.Year, d.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return civil.DateOf(t)
}
