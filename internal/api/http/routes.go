package httpapi

import (
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-pipeline/internal/chart"
	"github.com/i474232898/weather-pipeline/internal/pipeline"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
	"github.com/i474232898/weather-pipeline/internal/webhdfs"
)

var validate = validator.New()

// Reader serves the latest dataset. pipeline.Pipeline implements it.
type Reader interface {
	CityNames() []string
	LatestChart(ctx context.Context) ([]byte, error)
	LatestObservation(ctx context.Context, city string) (weather.Observation, bool, error)
}

// Trigger starts a full run. pipeline.Runner implements it.
type Trigger interface {
	Run(ctx context.Context, runDate civil.Date) (pipeline.RunResult, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reader Reader, trigger Trigger) {
	v1 := app.Group("/api/v1")

	v1.Post("/pipeline/runs", func(c *fiber.Ctx) error {
		var req runRequest
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		runDate := pipeline.Today()
		if req.Date != "" {
			d, err := civil.ParseDate(req.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
			runDate = d
		}

		res, err := trigger.Run(c.UserContext(), runDate)
		if err != nil {
			status := fiber.StatusBadGateway
			if errors.Is(err, pipeline.ErrNoData) {
				status = fiber.StatusUnprocessableEntity
			}
			return c.Status(status).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
				"run":     res,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(res)
	})

	v1.Get("/weather/summary", func(c *fiber.Ctx) error {
		q := summaryQuery{City: c.Query("city")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		city, ok := weather.LookupCity(q.City, reader.CityNames())
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "unsupported city")
		}

		obs, ok, err := reader.LatestObservation(c.UserContext(), city)
		if err != nil {
			return storeError(err)
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no weather data for "+city)
		}

		return c.JSON(fiber.Map{
			"observation": obs,
			"summary":     weather.FormatSummary(obs),
		})
	})

	v1.Get("/weather/chart", func(c *fiber.Ctx) error {
		img, err := reader.LatestChart(c.UserContext())
		if err != nil {
			return storeError(err)
		}

		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(img)
	})
}

type summaryQuery struct {
	City string `validate:"required,max=64"`
}

type runRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (r *runRequest) bind(c *fiber.Ctx) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(r); err != nil {
			return err
		}
	}
	if d := c.Query("date"); d != "" {
		r.Date = d
	}
	return validate.Struct(r)
}

// storeError maps read failures to HTTP statuses.
func storeError(err error) error {
	var (
		transport *webhdfs.TransportError
		parse     *weather.ParseError
	)

	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, chart.ErrNothingToPlot):
		return fiber.NewError(fiber.StatusNotFound, "no weather data collected yet")
	case errors.As(err, &transport) && transport.StatusCode == http.StatusNotFound:
		return fiber.NewError(fiber.StatusNotFound, "no weather data collected yet")
	case errors.As(err, &transport):
		return fiber.NewError(fiber.StatusBadGateway, "weather storage unavailable")
	case errors.As(err, &parse):
		return fiber.NewError(fiber.StatusInternalServerError, "stored weather data is malformed")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather data")
	}
}
