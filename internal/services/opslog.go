package services

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"relaydesk/pkg/models"
)

// Sender delivers text to a chat id. The transport client implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// OpsLogService mirrors conversation activity into a configured log
// chat so operators can watch traffic and jump into any conversation
// via a deep link. Disabled when LOG_CHAT_ID is unset.
type OpsLogService struct {
	sender      Sender
	logChatID   int64
	botUsername string
}

// NewOpsLogService creates an ops log service from LOG_CHAT_ID and
// BOT_USERNAME environment variables.
func NewOpsLogService(sender Sender) *OpsLogService {
	chatID, _ := strconv.ParseInt(os.Getenv("LOG_CHAT_ID"), 10, 64)
	return &OpsLogService{
		sender:      sender,
		logChatID:   chatID,
		botUsername: os.Getenv("BOT_USERNAME"),
	}
}

// Enabled reports whether a log chat is configured.
func (s *OpsLogService) Enabled() bool {
	return s.logChatID != 0
}

// AIExchange logs an automated question/answer pair with a takeover
// deep link.
func (s *OpsLogService) AIExchange(user *models.EndUser, question, answer string) {
	if !s.Enabled() {
		return
	}
	text := fmt.Sprintf("User: %s\nMessage: %q\n\nAI answer:\n%s", userLabel(user), question, answer)
	if link := s.takeoverLink(user.TelegramID); link != "" {
		text += "\n\nTake over: " + link
	}
	s.send(text)
}

// ManualInbound logs a user message that was forwarded to an operator.
func (s *OpsLogService) ManualInbound(user *models.EndUser, question string) {
	if !s.Enabled() {
		return
	}
	s.send(fmt.Sprintf("User message (operator mode)\nUser: %s\nMessage: %q", userLabel(user), question))
}

func (s *OpsLogService) takeoverLink(userTelegramID int64) string {
	if s.botUsername == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=chat_%d", s.botUsername, userTelegramID)
}

func (s *OpsLogService) send(text string) {
	if err := s.sender.SendMessage(s.logChatID, text); err != nil {
		// Log traffic is best effort; never fail the request over it.
		log.Warn().Err(err).Msg("failed to post to ops log chat")
	}
}

func userLabel(user *models.EndUser) string {
	if user.Username != "" {
		return fmt.Sprintf("@%s (id: %d)", user.Username, user.TelegramID)
	}
	return fmt.Sprintf("id:%d", user.TelegramID)
}
