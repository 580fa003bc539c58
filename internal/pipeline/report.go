package pipeline

import (
	"context"
	"fmt"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

// Notify sends the chart for the dataset at handle to the configured chat.
// It is the second stage of a scheduled run.
func (p *Pipeline) Notify(ctx context.Context, handle Path) error {
	return p.SendChart(ctx, handle, p.chatID)
}

// SendChart renders the dataset at path and sends it to chatID with
// ChartCaption.
func (p *Pipeline) SendChart(ctx context.Context, path Path, chatID int64) error {
	img, err := p.Chart(ctx, path)
	if err != nil {
		return err
	}

	if err := p.sender.SendImage(ctx, chatID, img, ChartCaption); err != nil {
		return fmt.Errorf("send chart: %w", err)
	}

	p.l.Info("chart sent", map[string]any{"path": path.String(), "chat_id": chatID})
	return nil
}

// Chart renders the dataset stored at path as a PNG.
func (p *Pipeline) Chart(ctx context.Context, path Path) ([]byte, error) {
	d, err := p.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	img, err := p.renderer.Render(d)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", path, err)
	}
	return img, nil
}

// LatestChart renders the latest dataset. Ad-hoc requests use it.
func (p *Pipeline) LatestChart(ctx context.Context) ([]byte, error) {
	return p.Chart(ctx, LatestPath)
}

// LatestObservation returns the last row appended for city in the latest
// dataset. ok is false when the city has no rows; that is not an error.
func (p *Pipeline) LatestObservation(ctx context.Context, city string) (obs weather.Observation, ok bool, err error) {
	d, err := p.Load(ctx, LatestPath)
	if err != nil {
		return weather.Observation{}, false, err
	}

	obs, ok = d.LatestFor(city)
	return obs, ok, nil
}
