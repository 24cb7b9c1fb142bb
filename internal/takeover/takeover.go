// Package takeover implements the conversation hand-off state machine:
// deciding whether an inbound message is answered by the automated agent
// or relayed to a human operator, the operator claim protocol, and the
// timeout-based reversion to automated mode.
//
// Every mutation is a single-row upsert keyed by user or operator id, so
// the package needs no in-process locking; the storage layer's atomic
// upsert is the only serialization primitive.
package takeover

import (
	"errors"
	"time"

	"relaydesk/pkg/models"
)

// ErrNoActiveSession is returned when an operator acts on a conversation
// without an active session pointer.
var ErrNoActiveSession = errors.New("operator has no active conversation")

// StateStore provides keyed access to conversation hand-off state.
// Get returns (nil, nil) when no row exists for the user.
type StateStore interface {
	Get(userTelegramID int64) (*models.ConversationState, error)
	Upsert(state *models.ConversationState) error
}

// SessionStore provides keyed access to operator sessions.
// Get returns (nil, nil) when no row exists for the operator.
type SessionStore interface {
	Get(operatorTelegramID int64) (*models.OperatorSession, error)
	Upsert(session *models.OperatorSession) error
}

// MessageLog records conversation messages and reads recent history.
// Messages are keyed by the end user's platform id; the implementation
// creates the user row on first write.
type MessageLog interface {
	Append(userTelegramID int64, role, content string) error
	Recent(userTelegramID int64, limit int) ([]models.Message, error)
}

// Transport delivers text to a chat platform recipient.
type Transport interface {
	SendMessage(chatID int64, text string) error
}

// Config carries the tunables of the hand-off state machine.
type Config struct {
	// Timeout is how long an operator claim stays valid without being
	// renewed. Expiry is evaluated lazily on the next inbound message.
	Timeout time.Duration
	// HistoryLimit is how many messages OpenSession returns for context.
	HistoryLimit int
}

// DefaultConfig returns the configuration matching the production
// defaults: 20 minute claims, 20 messages of context.
func DefaultConfig() Config {
	return Config{
		Timeout:      20 * time.Minute,
		HistoryLimit: 20,
	}
}
