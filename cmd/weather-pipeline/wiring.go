package main

import (
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/i474232898/weather-pipeline/internal/chart"
	"github.com/i474232898/weather-pipeline/internal/config"
	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/notify"
	"github.com/i474232898/weather-pipeline/internal/pipeline"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
	"github.com/i474232898/weather-pipeline/internal/weather/providers"
	"github.com/i474232898/weather-pipeline/internal/webhdfs"
	"github.com/i474232898/weather-pipeline/pkg/logger"
)

// longPoll is the getUpdates timeout in seconds.
const longPoll = 60

type deps struct {
	cfg      *config.AppConfig
	l        *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	pipeline *pipeline.Pipeline
	runner   *pipeline.Runner
	telegram *notify.Telegram
	botAPI   *tgbotapi.BotAPI
}

// setup loads config and builds every component. botToken overrides the
// configured token when not empty.
func setup(botToken string) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if botToken != "" {
		cfg.Telegram.BotToken = botToken
	}

	l := logger.New(cfg.AppName, logger.ParseLevel(cfg.LogLevel))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	objects, err := newStore(cfg, httpClient, l, m)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	// getUpdates holds the connection open for longPoll seconds.
	tgClient := &http.Client{Timeout: cfg.HTTPTimeout + longPoll*time.Second}
	tg, api, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, tgClient, l)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(pipeline.Options{
		Provider: provider,
		Store:    objects,
		Renderer: chart.NewTemperatureChart(),
		Sender:   tg,
		Cities:   cfg.Cities,
		ChatID:   cfg.Telegram.ChatID,
		Logger:   l,
		Metrics:  m,
	})

	return &deps{
		cfg:      cfg,
		l:        l,
		registry: reg,
		metrics:  m,
		pipeline: p,
		runner:   pipeline.NewRunner(p, cfg.Pipeline.Retries, cfg.Pipeline.RetryDelay, l, m),
		telegram: tg,
		botAPI:   api,
	}, nil
}

func newStore(cfg *config.AppConfig, client *http.Client, l *logger.Logger, m *metrics.Metrics) (pipeline.ObjectStore, error) {
	switch cfg.Store.Backend {
	case "webhdfs":
		return webhdfs.New(cfg.Store.WebHDFSURL, cfg.Store.WebHDFSUser, client, l, m), nil
	case "memory":
		l.Warning("using in-memory store; data is lost on exit")
		return store.NewMemoryStore(cfg.Store.MaxHistory), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newProvider(cfg *config.AppConfig, client *http.Client) (weather.Provider, error) {
	rate := providers.WithRateLimit(cfg.Provider.RequestsPerSecond)

	switch cfg.Provider.Name {
	case "meteostat":
		return providers.NewMeteostatProvider(client, cfg.Provider.APIKey, rate), nil
	case "openmeteo":
		return providers.NewOpenMeteoProvider(client, rate), nil
	case "weatherapi":
		return providers.NewWeatherAPIProvider(client, cfg.Provider.APIKey, rate), nil
	case "openweather":
		return providers.NewOpenWeatherProvider(client, cfg.Provider.APIKey, rate), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}
