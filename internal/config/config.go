package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

// AppConfig is built once at startup and handed to every component.
type AppConfig struct {
	AppName     string        `envconfig:"APP_NAME" default:"weather-pipeline"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	Port        string        `envconfig:"PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	// CitiesFile is a YAML file with the ordered city list. When missing the
	// built-in cities are used.
	CitiesFile string `envconfig:"CITIES_FILE" default:"config/cities.yaml"`

	Telegram TelegramConfig
	Store    StoreConfig
	Provider ProviderConfig
	Pipeline PipelineConfig

	// Cities are iterated in this order during ingest.
	Cities []weather.City `ignored:"true" validate:"required,min=1,dive"`
}

type TelegramConfig struct {
	BotToken    string `envconfig:"BOT_TOKEN"`
	ChatID      int64  `envconfig:"CHAT_ID"`
	APIEndpoint string `envconfig:"API_ENDPOINT"`
}

type StoreConfig struct {
	Backend     string `envconfig:"BACKEND" default:"webhdfs" validate:"oneof=webhdfs memory"`
	WebHDFSURL  string `envconfig:"WEBHDFS_URL" default:"http://namenode:50070/webhdfs/v1" validate:"required,url"`
	WebHDFSUser string `envconfig:"WEBHDFS_USER" default:"airflow" validate:"required"`
	MaxHistory  int    `envconfig:"MAX_HISTORY" default:"12" validate:"gte=0"`
}

type ProviderConfig struct {
	Name              string  `envconfig:"NAME" default:"meteostat" validate:"oneof=meteostat openmeteo weatherapi openweather"`
	APIKey            string  `envconfig:"API_KEY"`
	RequestsPerSecond float64 `envconfig:"RPS" default:"2" validate:"gte=0"`
}

type PipelineConfig struct {
	Schedule   string        `envconfig:"SCHEDULE" default:"@monthly" validate:"required"`
	Retries    int           `envconfig:"RETRIES" default:"1" validate:"gte=0"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"5m" validate:"gte=0"`
}

type citiesFile struct {
	Cities []weather.City `yaml:"cities"`
}

var validate = validator.New()

// DefaultCities is the built-in city list used when no cities file exists.
func DefaultCities() []weather.City {
	return []weather.City{
		{Name: "Moscow", StationID: "27611", Lat: weather.Float(55.7558), Lon: weather.Float(37.6173)},
		{Name: "Saint Petersburg", StationID: "27612", Lat: weather.Float(59.9386), Lon: weather.Float(30.3141)},
		{Name: "Adler", StationID: "37171", Lat: weather.Float(43.4286), Lon: weather.Float(39.9239)},
	}
}

// Load reads .env (if present), the environment and the cities file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cities, err := loadCities(cfg.CitiesFile)
	if err != nil {
		return nil, err
	}
	cfg.Cities = cities

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and that city names are unique.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Cities))
	for _, city := range c.Cities {
		if _, dup := seen[city.Name]; dup {
			return fmt.Errorf("invalid config: duplicate city %q", city.Name)
		}
		seen[city.Name] = struct{}{}
	}
	return nil
}

// CityNames returns the configured city names in ingest order.
func (c *AppConfig) CityNames() []string {
	names := make([]string, 0, len(c.Cities))
	for _, city := range c.Cities {
		names = append(names, city.Name)
	}
	return names
}

func loadCities(path string) ([]weather.City, error) {
	if path == "" {
		return DefaultCities(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultCities(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cities file %s: %w", path, err)
	}

	var f citiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cities file %s: %w", path, err)
	}
	if len(f.Cities) == 0 {
		return nil, fmt.Errorf("cities file %s lists no cities", path)
	}
	return f.Cities, nil
}
