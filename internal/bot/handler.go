// Package bot answers Telegram commands from the latest stored dataset.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/notify"
	"github.com/i474232898/weather-pipeline/internal/weather"
	"github.com/i474232898/weather-pipeline/pkg/logger"
)

const (
	callbackPrefix = "city_"

	progressText = "⏳ Building the chart..."
	chartCaption = "📈 Temperature chart for the past month"
	noCityData   = "❌ No data for this city"
	unknownText  = "Unknown command. Send /help for the list of commands."
)

// Responder delivers replies. notify.Telegram implements it.
type Responder interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMarkdown(ctx context.Context, chatID int64, text string) error
	SendImage(ctx context.Context, chatID int64, image []byte, caption string) error
	SendChoices(ctx context.Context, chatID int64, text string, choices []notify.Choice) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Reader serves the ad-hoc read paths. pipeline.Pipeline implements it.
type Reader interface {
	LatestChart(ctx context.Context) ([]byte, error)
	LatestObservation(ctx context.Context, city string) (weather.Observation, bool, error)
}

type Handler struct {
	reader Reader
	out    Responder
	cities []string

	l *logger.Logger
	m *metrics.Metrics
}

func NewHandler(reader Reader, out Responder, cities []string, l *logger.Logger, m *metrics.Metrics) *Handler {
	if l == nil {
		l = logger.Nop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Handler{reader: reader, out: out, cities: cities, l: l, m: m}
}

// Poll handles updates one at a time until ctx is done or the channel closes.
func (h *Handler) Poll(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate dispatches one update. Failures are turned into replies and
// never returned.
func (h *Handler) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		h.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.IsCommand():
		h.handleCommand(ctx, u.Message)
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cmd := msg.Command()

	var err error
	switch cmd {
	case "start":
		err = h.out.SendText(ctx, chatID, greeting(msg.From))
	case "help":
		err = h.out.SendText(ctx, chatID, h.helpText())
	case "forecast":
		err = h.forecast(ctx, chatID)
	case "weather":
		err = h.weather(ctx, chatID, msg.CommandArguments())
	case "choose":
		err = h.out.SendChoices(ctx, chatID, "Choose a city:", h.choices())
	default:
		cmd = "unknown"
		err = h.out.SendText(ctx, chatID, unknownText)
	}

	h.finish(ctx, cmd, chatID, err)
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if err := h.out.AnswerCallback(ctx, q.ID); err != nil {
		h.l.Warning("could not answer callback", map[string]any{"error": err})
	}
	if q.Message == nil || q.Message.Chat == nil {
		return
	}

	chatID := q.Message.Chat.ID
	city, ok := weather.LookupCity(strings.TrimPrefix(q.Data, callbackPrefix), h.cities)

	var err error
	if !ok {
		err = unsupportedCity(h.cities)
	} else {
		err = h.cityWeather(ctx, chatID, city)
	}
	h.finish(ctx, "choose_callback", chatID, err)
}

func (h *Handler) forecast(ctx context.Context, chatID int64) error {
	if err := h.out.SendText(ctx, chatID, progressText); err != nil {
		return err
	}

	img, err := h.reader.LatestChart(ctx)
	if err != nil {
		return err
	}
	return h.out.SendImage(ctx, chatID, img, chartCaption)
}

func (h *Handler) weather(ctx context.Context, chatID int64, args string) error {
	if strings.TrimSpace(args) == "" {
		return missingCity()
	}

	city, ok := weather.LookupCity(args, h.cities)
	if !ok {
		return unsupportedCity(h.cities)
	}
	return h.cityWeather(ctx, chatID, city)
}

func (h *Handler) cityWeather(ctx context.Context, chatID int64, city string) error {
	obs, ok, err := h.reader.LatestObservation(ctx, city)
	if err != nil {
		return err
	}
	if !ok {
		return h.out.SendText(ctx, chatID, noCityData)
	}
	return h.out.SendMarkdown(ctx, chatID, weather.FormatSummary(obs))
}

// finish records the outcome and turns err into a reply.
func (h *Handler) finish(ctx context.Context, cmd string, chatID int64, err error) {
	if err == nil {
		h.m.Commands.WithLabelValues(cmd, outcomeOK).Inc()
		return
	}

	reply, outcome := describe(err)
	h.m.Commands.WithLabelValues(cmd, outcome).Inc()
	if outcome == outcomeError {
		h.l.Error(err, map[string]any{"command": cmd, "chat_id": chatID})
	}

	if serr := h.out.SendText(ctx, chatID, reply); serr != nil {
		h.l.Warning("could not send error reply", map[string]any{"command": cmd, "error": serr})
	}
}

func (h *Handler) helpText() string {
	return "Available commands:\n" +
		"/start - greeting\n" +
		"/help - list of commands\n" +
		"/forecast - temperature chart for the past month\n" +
		"/weather <city> - latest weather for a city\n" +
		"/choose - pick a city with buttons\n" +
		"Supported cities: " + strings.Join(h.cities, ", ")
}

func (h *Handler) choices() []notify.Choice {
	out := make([]notify.Choice, 0, len(h.cities))
	for _, c := range h.cities {
		out = append(out, notify.Choice{Label: c, Data: callbackPrefix + c})
	}
	return out
}

func greeting(u *tgbotapi.User) string {
	if u == nil || u.FirstName == "" {
		return "Hello! I am a weather forecast bot."
	}
	return fmt.Sprintf("Hello, %s! I am a weather forecast bot.", u.FirstName)
}
