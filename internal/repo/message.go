package repo

import (
	"gorm.io/gorm"

	"relaydesk/pkg/models"
)

// MessageRepository handles message data access. Messages are
// append-only; the only deletion is trimming the oldest rows once a
// user's history exceeds the retention cap.
type MessageRepository struct {
	db    *gorm.DB
	users *EndUserRepository
	keep  int
}

// NewMessageRepository creates a new message repository. keep is the
// per-user retention cap; 0 disables trimming.
func NewMessageRepository(db *gorm.DB, users *EndUserRepository, keep int) *MessageRepository {
	return &MessageRepository{db: db, users: users, keep: keep}
}

// Append persists one message for the user identified by platform id,
// creating the user row on first contact, then trims history beyond the
// retention cap.
func (r *MessageRepository) Append(userTelegramID int64, role, content string) error {
	user, err := r.users.Ensure(userTelegramID, "")
	if err != nil {
		return err
	}

	message := models.Message{
		EndUserID: user.ID,
		Role:      role,
		Content:   content,
	}
	if err := r.db.Create(&message).Error; err != nil {
		return err
	}

	return r.trim(user)
}

// Recent returns the most recent messages for a user in chronological
// order, up to limit. An unknown user yields an empty history.
func (r *MessageRepository) Recent(userTelegramID int64, limit int) ([]models.Message, error) {
	user, err := r.users.GetByTelegramID(userTelegramID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	var messages []models.Message
	err = r.db.Where("end_user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountByUser counts messages for an end user row.
func (r *MessageRepository) CountByUser(user *models.EndUser) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).Where("end_user_id = ?", user.ID).Count(&count).Error
	return count, err
}

func (r *MessageRepository) trim(user *models.EndUser) error {
	if r.keep <= 0 {
		return nil
	}
	count, err := r.CountByUser(user)
	if err != nil {
		return err
	}
	extra := count - int64(r.keep)
	if extra <= 0 {
		return nil
	}
	return r.db.Exec(`
		DELETE FROM messages
		WHERE id IN (
			SELECT id FROM messages
			WHERE end_user_id = ?
			ORDER BY created_at ASC
			LIMIT ?
		)`, user.ID, extra).Error
}
