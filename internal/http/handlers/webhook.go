package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/gateway"
)

// telegramUpdate is the slice of the Bot API update payload the relay
// consumes.
type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64             `json:"message_id"`
	From      *telegramUser     `json:"from"`
	Chat      telegramChat      `json:"chat"`
	Text      string            `json:"text"`
	Caption   string            `json:"caption"`
	Document  *telegramDocument `json:"document"`
}

type telegramUser struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

type telegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type telegramDocument struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// WebhookHandler receives Telegram webhook updates and feeds them to the
// gateway.
type WebhookHandler struct {
	gateway *gateway.Gateway
	secret  string
}

// NewWebhookHandler creates a new webhook handler. A non-empty secret is
// checked against the X-Telegram-Bot-Api-Secret-Token header on every
// update.
func NewWebhookHandler(gw *gateway.Gateway, secret string) *WebhookHandler {
	return &WebhookHandler{gateway: gw, secret: secret}
}

// Handle processes one webhook delivery. Telegram retries non-200
// responses, so processing happens asynchronously and the handler
// acknowledges immediately.
func (h *WebhookHandler) Handle(c echo.Context) error {
	if h.secret != "" && c.Request().Header.Get("X-Telegram-Bot-Api-Secret-Token") != h.secret {
		return c.NoContent(http.StatusForbidden)
	}

	var update telegramUpdate
	if err := c.Bind(&update); err != nil {
		log.Warn().Err(err).Msg("failed to decode webhook update")
		return c.NoContent(http.StatusOK)
	}

	in, ok := normalize(update)
	if !ok {
		return c.NoContent(http.StatusOK)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Int64("update_id", update.UpdateID).Msg("panic while processing update")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := h.gateway.HandleInbound(ctx, in); err != nil {
			log.Error().Err(err).Int64("sender_id", in.SenderID).Msg("failed to process update")
		}
	}()

	return c.NoContent(http.StatusOK)
}

// normalize converts a raw update into the gateway's inbound shape.
// Group chats, bot senders and empty updates are dropped.
func normalize(update telegramUpdate) (gateway.Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return gateway.Inbound{}, false
	}
	if msg.Chat.Type != "" && msg.Chat.Type != "private" {
		return gateway.Inbound{}, false
	}

	in := gateway.Inbound{
		SenderID: msg.From.ID,
		Username: msg.From.Username,
		Text:     msg.Text,
	}
	if in.Text == "" {
		in.Text = msg.Caption
	}
	if msg.Document != nil {
		in.Document = &gateway.InboundDocument{
			FileID:   msg.Document.FileID,
			Filename: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			FileSize: msg.Document.FileSize,
		}
	}
	if in.Text == "" && in.Document == nil {
		return gateway.Inbound{}, false
	}
	return in, true
}
