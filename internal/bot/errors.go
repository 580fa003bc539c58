package bot

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/i474232898/weather-pipeline/internal/chart"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
	"github.com/i474232898/weather-pipeline/internal/webhdfs"
)

// UserInputError is a request the bot cannot serve as asked. Its message is
// shown to the user verbatim.
type UserInputError struct {
	Message string
}

func (e *UserInputError) Error() string {
	return e.Message
}

func missingCity() error {
	return &UserInputError{Message: "❗ Specify a city. Example: /weather Moscow"}
}

func unsupportedCity(supported []string) error {
	return &UserInputError{Message: fmt.Sprintf(
		"❌ Sorry, this city is not supported.\nAvailable cities: %s",
		strings.Join(supported, ", "),
	)}
}

const (
	outcomeOK        = "ok"
	outcomeUserError = "user_error"
	outcomeError     = "error"
)

// describe maps an error to the reply text and the metrics outcome.
func describe(err error) (reply, outcome string) {
	var (
		input     *UserInputError
		transport *webhdfs.TransportError
		parse     *weather.ParseError
	)

	switch {
	case errors.As(err, &input):
		return input.Message, outcomeUserError
	case errors.Is(err, store.ErrNotFound):
		return "❌ No weather data has been collected yet.", outcomeError
	case errors.As(err, &transport) && transport.StatusCode == http.StatusNotFound:
		return "❌ No weather data has been collected yet.", outcomeError
	case errors.As(err, &transport):
		return "❌ The weather storage is unavailable right now. Try again later.", outcomeError
	case errors.As(err, &parse):
		return "❌ The stored weather data is damaged and cannot be read.", outcomeError
	case errors.Is(err, chart.ErrNothingToPlot):
		return "❌ There are no temperatures to plot yet.", outcomeError
	default:
		return "❌ Failed to get the weather data. Try again later.", outcomeError
	}
}
