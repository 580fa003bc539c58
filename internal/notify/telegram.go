// Package notify delivers charts and text to Telegram chats.
package notify

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/i474232898/weather-pipeline/pkg/logger"
)

// BotAPI is the subset of *tgbotapi.BotAPI the notifier needs.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Choice is one inline button: Label is shown, Data comes back in the callback.
type Choice struct {
	Label string
	Data  string
}

// Telegram sends messages through the Bot API. Every call is synchronous and
// its error is returned to the caller.
type Telegram struct {
	api BotAPI
	l   *logger.Logger
}

// NewTelegram authenticates against the Bot API with token. endpoint may be
// empty to use the public API.
func NewTelegram(token, endpoint string, client *http.Client, l *logger.Logger) (*Telegram, *tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: authenticate: %w", err)
	}
	l.Info("telegram bot authorized", map[string]any{"username": api.Self.UserName})

	return NewTelegramWithAPI(api, l), api, nil
}

// NewTelegramWithAPI wraps an existing API client.
func NewTelegramWithAPI(api BotAPI, l *logger.Logger) *Telegram {
	return &Telegram{api: api, l: l}
}

// SendText sends a plain text message.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	return t.send(ctx, "text", chatID, tgbotapi.NewMessage(chatID, text))
}

// SendMarkdown sends a message rendered with Telegram's legacy Markdown.
func (t *Telegram) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return t.send(ctx, "markdown", chatID, msg)
}

// SendImage uploads a PNG with a caption.
func (t *Telegram) SendImage(ctx context.Context, chatID int64, image []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "temperature.png", Bytes: image})
	photo.Caption = caption
	return t.send(ctx, "image", chatID, photo)
}

// SendChoices sends text with a single row of inline buttons.
func (t *Telegram) SendChoices(ctx context.Context, chatID int64, text string, choices []Choice) error {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, c := range choices {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
	return t.send(ctx, "choices", chatID, msg)
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, kind string, chatID int64, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Send(c); err != nil {
		t.l.Warning("telegram send failed", map[string]any{"kind": kind, "chat_id": chatID, "err": err})
		return fmt.Errorf("telegram: send %s to %d: %w", kind, chatID, err)
	}
	t.l.Debug("telegram message sent", map[string]any{"kind": kind, "chat_id": chatID})
	return nil
}
