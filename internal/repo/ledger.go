package repo

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"relaydesk/pkg/models"
)

// ConversationStateRepository handles conversation hand-off state access.
// Every write is a single-row upsert keyed by the user's telegram id,
// which is the only serialization primitive the hand-off protocol
// relies on.
type ConversationStateRepository struct {
	db *gorm.DB
}

// NewConversationStateRepository creates a new conversation state repository
func NewConversationStateRepository(db *gorm.DB) *ConversationStateRepository {
	return &ConversationStateRepository{db: db}
}

// Get returns the state row for a user, or (nil, nil) when absent.
// Absence is equivalent to automated mode with no claim.
func (r *ConversationStateRepository) Get(userTelegramID int64) (*models.ConversationState, error) {
	var state models.ConversationState
	err := r.db.Where("user_telegram_id = ?", userTelegramID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Upsert atomically inserts or replaces the state row for a user.
func (r *ConversationStateRepository) Upsert(state *models.ConversationState) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mode", "claimed_by", "claimed_at", "updated_at"}),
	}).Create(state).Error
}

// OperatorSessionRepository handles operator session access.
type OperatorSessionRepository struct {
	db *gorm.DB
}

// NewOperatorSessionRepository creates a new operator session repository
func NewOperatorSessionRepository(db *gorm.DB) *OperatorSessionRepository {
	return &OperatorSessionRepository{db: db}
}

// Get returns the session row for an operator, or (nil, nil) when absent.
func (r *OperatorSessionRepository) Get(operatorTelegramID int64) (*models.OperatorSession, error) {
	var session models.OperatorSession
	err := r.db.Where("operator_telegram_id = ?", operatorTelegramID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Upsert atomically inserts or replaces the session row for an operator.
func (r *OperatorSessionRepository) Upsert(session *models.OperatorSession) error {
	if session.PendingInput == "" {
		session.PendingInput = models.PendingIdle
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active_user_id", "pending_input", "updated_at"}),
	}).Create(session).Error
}
