package models

import "time"

// Operator roles
const (
	RoleOperatorAccount = "operator"
	RoleAdminAccount    = "admin"
)

// Operator is a human agent allowed to take over conversations. The
// telegram id is the identity used on the chat side; email and password
// authenticate the console API.
type Operator struct {
	BaseModel
	TelegramID  int64      `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Email       string     `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	Password    string     `gorm:"not null" json:"-"`
	Name        string     `gorm:"size:255" json:"name"`
	Role        string     `gorm:"default:'operator';size:20" json:"role"` // operator, admin
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
}
