package repo

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"relaydesk/pkg/models"
)

// EndUserRepository handles end user data access
type EndUserRepository struct {
	db *gorm.DB
}

// NewEndUserRepository creates a new end user repository
func NewEndUserRepository(db *gorm.DB) *EndUserRepository {
	return &EndUserRepository{db: db}
}

// GetByTelegramID gets an end user by platform id, or (nil, nil) when absent.
func (r *EndUserRepository) GetByTelegramID(telegramID int64) (*models.EndUser, error) {
	var user models.EndUser
	err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Ensure returns the user row for a platform id, creating it on first
// contact. A non-empty username refreshes the stored handle.
func (r *EndUserRepository) Ensure(telegramID int64, username string) (*models.EndUser, error) {
	user, err := r.GetByTelegramID(telegramID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &models.EndUser{TelegramID: telegramID, Username: username}
		if err := r.db.Create(user).Error; err != nil {
			return nil, err
		}
		return user, nil
	}
	if username != "" && user.Username != username {
		user.Username = username
		if err := r.db.Save(user).Error; err != nil {
			return nil, err
		}
	}
	return user, nil
}

// List lists end users with pagination, most recent first.
func (r *EndUserRepository) List(limit, offset int) ([]models.EndUser, error) {
	var users []models.EndUser
	err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error
	return users, err
}

// OperatorRepository handles operator account data access
type OperatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// GetByEmail gets an operator by email
func (r *OperatorRepository) GetByEmail(email string) (*models.Operator, error) {
	var op models.Operator
	err := r.db.Where("LOWER(email) = LOWER(?)", email).First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetByID gets an operator by ID
func (r *OperatorRepository) GetByID(id uuid.UUID) (*models.Operator, error) {
	var op models.Operator
	err := r.db.Where("id = ?", id).First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetActiveByTelegramID resolves a chat sender to an active operator
// account, or (nil, nil) when the sender is a regular end user. This is
// the authorization gate for every operator action on the chat side.
func (r *OperatorRepository) GetActiveByTelegramID(telegramID int64) (*models.Operator, error) {
	var op models.Operator
	err := r.db.Where("telegram_id = ? AND is_active = true", telegramID).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// Create creates a new operator
func (r *OperatorRepository) Create(op *models.Operator) error {
	return r.db.Create(op).Error
}

// Update updates an operator
func (r *OperatorRepository) Update(op *models.Operator) error {
	return r.db.Save(op).Error
}

// Count returns the number of operator accounts.
func (r *OperatorRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Operator{}).Count(&count).Error
	return count, err
}
