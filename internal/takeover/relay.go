package takeover

import (
	"fmt"
	"time"

	"relaydesk/pkg/models"
)

// Relay forwards operator-authored replies to the user they are
// currently talking to, and opens takeover sessions.
type Relay struct {
	protocol  *Protocol
	sessions  SessionStore
	messages  MessageLog
	transport Transport
}

// NewRelay creates a new operator relay.
func NewRelay(protocol *Protocol, sessions SessionStore, messages MessageLog, transport Transport) *Relay {
	return &Relay{protocol: protocol, sessions: sessions, messages: messages, transport: transport}
}

// OperatorReply persists an operator-role message for the operator's
// active conversation and delivers it to the user. Returns the user's
// telegram id on success and ErrNoActiveSession when the operator has
// no active conversation.
//
// The conversation mode is intentionally not consulted: a stale session
// pointer can still relay into a conversation that already reverted to
// automated.
func (r *Relay) OperatorReply(operatorTelegramID int64, text string) (int64, error) {
	session, err := r.sessions.Get(operatorTelegramID)
	if err != nil {
		return 0, err
	}
	if session == nil || session.ActiveUserID == nil {
		return 0, ErrNoActiveSession
	}
	userID := *session.ActiveUserID

	if err := r.messages.Append(userID, models.RoleOperator, text); err != nil {
		return 0, err
	}
	if err := r.transport.SendMessage(userID, text); err != nil {
		// The message is already persisted; delivery failure is
		// recoverable and surfaced to the operator, not retried.
		return userID, fmt.Errorf("reply stored but delivery failed: %w", err)
	}
	return userID, nil
}

// OpenSession claims the conversation for the operator, points their
// session at the user, and returns the most recent messages in
// chronological order for display.
func (r *Relay) OpenSession(operatorTelegramID, userTelegramID int64, now time.Time) ([]models.Message, error) {
	if err := r.protocol.Claim(userTelegramID, operatorTelegramID, now); err != nil {
		return nil, err
	}

	session, err := r.sessions.Get(operatorTelegramID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = &models.OperatorSession{
			OperatorTelegramID: operatorTelegramID,
			PendingInput:       models.PendingIdle,
		}
	}
	session.ActiveUserID = &userTelegramID
	if err := r.sessions.Upsert(session); err != nil {
		return nil, err
	}

	return r.messages.Recent(userTelegramID, r.protocol.Config().HistoryLimit)
}
