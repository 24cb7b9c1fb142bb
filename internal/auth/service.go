package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"relaydesk/pkg/models"
)

// Service handles operator authentication for the console API.
type Service struct {
	operators OperatorRepository
}

// OperatorRepository interface for operator account access
type OperatorRepository interface {
	GetByEmail(email string) (*models.Operator, error)
	GetByID(id uuid.UUID) (*models.Operator, error)
	Update(op *models.Operator) error
}

// NewService creates a new auth service
func NewService(operators OperatorRepository) *Service {
	return &Service{operators: operators}
}

// LoginRequest represents login request data
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents login response data
type LoginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Operator     models.Operator `json:"operator"`
	ExpiresIn    int64           `json:"expires_in"`
}

// TokenClaims represents JWT token claims
type TokenClaims struct {
	OperatorID uuid.UUID `json:"operator_id"`
	TelegramID int64     `json:"telegram_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Type       string    `json:"type"` // access or refresh
	jwt.RegisteredClaims
}

// Login authenticates an operator and returns tokens
func (s *Service) Login(req LoginRequest) (*LoginResponse, error) {
	op, err := s.operators.GetByEmail(req.Email)
	if err != nil {
		return nil, errors.New("invalid credentials")
	}
	if !op.IsActive {
		return nil, errors.New("operator account is disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(op.Password), []byte(req.Password)) != nil {
		return nil, errors.New("invalid credentials")
	}

	now := time.Now()
	op.LastLoginAt = &now
	s.operators.Update(op)

	accessToken, err := s.generateToken(op, "access", accessDuration())
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(op, "refresh", refreshDuration())
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Operator:     *op,
		ExpiresIn:    int64(accessDuration().Seconds()),
	}, nil
}

// Refresh generates new tokens from a refresh token
func (s *Service) Refresh(tokenString string) (*LoginResponse, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != "refresh" {
		return nil, errors.New("invalid token type")
	}

	op, err := s.operators.GetByID(claims.OperatorID)
	if err != nil {
		return nil, errors.New("operator not found")
	}
	if !op.IsActive {
		return nil, errors.New("operator account is disabled")
	}

	accessToken, err := s.generateToken(op, "access", accessDuration())
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(op, "refresh", refreshDuration())
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Operator:     *op,
		ExpiresIn:    int64(accessDuration().Seconds()),
	}, nil
}

// ValidateToken parses and validates a JWT token
func (s *Service) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) generateToken(op *models.Operator, tokenType string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		OperatorID: op.ID,
		TelegramID: op.TelegramID,
		Email:      op.Email,
		Role:       op.Role,
		Type:       tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			Subject:   op.ID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

func jwtSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}
	return []byte(secret)
}

func accessDuration() time.Duration {
	d, err := time.ParseDuration(getEnvOrDefault("JWT_ACCESS_DURATION", "15m"))
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

func refreshDuration() time.Duration {
	d, err := time.ParseDuration(getEnvOrDefault("JWT_REFRESH_DURATION", "168h"))
	if err != nil {
		return 168 * time.Hour
	}
	return d
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
