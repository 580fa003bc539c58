// Package pipeline sequences the monthly weather run: ingest observations
// into the object store, then read them back, render a chart and send it.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/weather"
	"github.com/i474232898/weather-pipeline/pkg/logger"
)

// ErrNoData means every configured city came back empty during ingest.
var ErrNoData = errors.New("no data for any city")

// ChartCaption accompanies every chart sent by the pipeline.
const ChartCaption = "📊 Temperature for the past month"

// ObjectStore is satisfied by webhdfs.Client and store.MemoryStore.
type ObjectStore interface {
	Write(ctx context.Context, path string, data []byte, overwrite bool) error
	Read(ctx context.Context, path string) ([]byte, error)
}

type Renderer interface {
	Render(d weather.Dataset) ([]byte, error)
}

type ImageSender interface {
	SendImage(ctx context.Context, chatID int64, image []byte, caption string) error
}

// Options carries the collaborators and settings of a Pipeline.
type Options struct {
	Provider weather.Provider
	Store    ObjectStore
	Renderer Renderer
	Sender   ImageSender

	// Cities are fetched in this order and appear in the dataset in it.
	Cities []weather.City
	// ChatID receives the chart of a scheduled run.
	ChatID int64

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

type Pipeline struct {
	provider weather.Provider
	store    ObjectStore
	renderer Renderer
	sender   ImageSender

	cities []weather.City
	chatID int64

	l *logger.Logger
	m *metrics.Metrics
}

func New(opts Options) *Pipeline {
	l := opts.Logger
	if l == nil {
		l = logger.Nop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	return &Pipeline{
		provider: opts.Provider,
		store:    opts.Store,
		renderer: opts.Renderer,
		sender:   opts.Sender,
		cities:   opts.Cities,
		chatID:   opts.ChatID,
		l:        l,
		m:        m,
	}
}

// CityNames returns the configured city names in ingest order.
func (p *Pipeline) CityNames() []string {
	names := make([]string, 0, len(p.cities))
	for _, c := range p.cities {
		names = append(names, c.Name)
	}
	return names
}

// Load reads and decodes the dataset stored at path.
func (p *Pipeline) Load(ctx context.Context, path Path) (weather.Dataset, error) {
	raw, err := p.store.Read(ctx, path.String())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	d, err := weather.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return d, nil
}
