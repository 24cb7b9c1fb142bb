package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation modes. A conversation with no state row is automated.
const (
	ModeAutomated = "automated"
	ModeOperator  = "operator"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleOperator  = "operator"
)

// Pending input states for an operator session. Replaces the free-floating
// "waiting for X" sets with an explicit per-operator field.
const (
	PendingIdle           = "idle"
	PendingAwaitingPrompt = "awaiting_prompt"
	PendingAwaitingFile   = "awaiting_file"
)

// EndUser represents a chat platform user talking to the bot.
// Created lazily on first inbound message, never deleted.
type EndUser struct {
	BaseModel
	TelegramID int64  `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username   string `gorm:"size:255" json:"username"`
}

// Message is an append-only conversation record. Ordering is by
// created_at ascending.
type Message struct {
	BaseModel
	EndUserID uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE" json:"end_user_id"`
	Role      string    `gorm:"not null;size:20" json:"role"` // user, assistant, operator
	Content   string    `gorm:"not null;type:text" json:"content"`

	// Relations
	EndUser *EndUser `gorm:"foreignKey:EndUserID" json:"end_user,omitempty"`
}

// ConversationState holds the per-user hand-off state, keyed by the
// user's platform id. Invariant: mode=operator iff claimed_by and
// claimed_at are both set.
type ConversationState struct {
	UserTelegramID int64      `gorm:"primaryKey;autoIncrement:false" json:"user_telegram_id"`
	Mode           string     `gorm:"not null;default:'automated';size:20" json:"mode"`
	ClaimedBy      *int64     `json:"claimed_by"`
	ClaimedAt      *time.Time `json:"claimed_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// OperatorSession points an operator at the single user conversation they
// are currently viewing. Deliberately decoupled from ConversationState:
// closing the view does not release the claim.
type OperatorSession struct {
	OperatorTelegramID int64     `gorm:"primaryKey;autoIncrement:false" json:"operator_telegram_id"`
	ActiveUserID       *int64    `json:"active_user_id"` // end user telegram id
	PendingInput       string    `gorm:"not null;default:'idle';size:30" json:"pending_input"`
	UpdatedAt          time.Time `json:"updated_at"`
}
