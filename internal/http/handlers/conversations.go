package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"relaydesk/internal/auth"
	"relaydesk/internal/repo"
	"relaydesk/internal/takeover"
	"relaydesk/pkg/models"
)

// ConversationHandler exposes conversations to the operator console.
type ConversationHandler struct {
	users    *repo.EndUserRepository
	states   *repo.ConversationStateRepository
	messages *repo.MessageRepository
	relay    *takeover.Relay
	protocol *takeover.Protocol
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(users *repo.EndUserRepository, states *repo.ConversationStateRepository, messages *repo.MessageRepository, relay *takeover.Relay, protocol *takeover.Protocol) *ConversationHandler {
	return &ConversationHandler{
		users:    users,
		states:   states,
		messages: messages,
		relay:    relay,
		protocol: protocol,
	}
}

// conversationSummary is a user row with its hand-off state.
type conversationSummary struct {
	User  models.EndUser            `json:"user"`
	State *models.ConversationState `json:"state,omitempty"`
}

// List returns known end users with their conversation state.
func (h *ConversationHandler) List(c echo.Context) error {
	limit, offset := pagination(c)

	users, err := h.users.List(limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list conversations"})
	}

	out := make([]conversationSummary, 0, len(users))
	for _, user := range users {
		state, err := h.states.Get(user.TelegramID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load conversation state"})
		}
		out = append(out, conversationSummary{User: user, State: state})
	}
	return c.JSON(http.StatusOK, out)
}

// History returns the most recent messages of one conversation in
// chronological order.
func (h *ConversationHandler) History(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user id"})
	}
	limit, _ := pagination(c)

	history, err := h.messages.Recent(userID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load history"})
	}
	return c.JSON(http.StatusOK, history)
}

// Claim takes the conversation over for the authenticated operator and
// returns the recent history.
func (h *ConversationHandler) Claim(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user id"})
	}
	claims := c.Get("claims").(*auth.TokenClaims)

	history, err := h.relay.OpenSession(claims.TelegramID, userID, time.Now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to claim conversation"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_telegram_id": userID,
		"history":          history,
	})
}

// Reply relays an operator message into their active conversation.
func (h *ConversationHandler) Reply(c echo.Context) error {
	claims := c.Get("claims").(*auth.TokenClaims)

	var req struct {
		Text string `json:"text" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	userID, err := h.relay.OperatorReply(claims.TelegramID, req.Text)
	if err != nil {
		if errors.Is(err, takeover.ErrNoActiveSession) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "No active conversation"})
		}
		if userID != 0 {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "Reply stored but delivery failed"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to send reply"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user_telegram_id": userID})
}

// Release closes the operator's conversation view without dropping the
// claim.
func (h *ConversationHandler) Release(c echo.Context) error {
	claims := c.Get("claims").(*auth.TokenClaims)

	if err := h.protocol.Release(claims.TelegramID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to release conversation"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Return hands the conversation back to the automated responder.
func (h *ConversationHandler) Return(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user id"})
	}
	claims := c.Get("claims").(*auth.TokenClaims)

	if err := h.protocol.ReturnToAutomated(userID, claims.TelegramID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to return conversation"})
	}
	return c.NoContent(http.StatusNoContent)
}

func userIDParam(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("user_id"), 10, 64)
}

func pagination(c echo.Context) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
