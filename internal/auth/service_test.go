package auth

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"relaydesk/pkg/models"
)

type fakeOperatorRepo struct {
	byEmail map[string]*models.Operator
	byID    map[uuid.UUID]*models.Operator
}

func (f *fakeOperatorRepo) GetByEmail(email string) (*models.Operator, error) {
	if op, ok := f.byEmail[email]; ok {
		return op, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeOperatorRepo) GetByID(id uuid.UUID) (*models.Operator, error) {
	if op, ok := f.byID[id]; ok {
		return op, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeOperatorRepo) Update(op *models.Operator) error { return nil }

func newTestOperator(t *testing.T) *models.Operator {
	t.Helper()
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	op := &models.Operator{
		TelegramID: 7,
		Email:      "op@example.com",
		Password:   hash,
		Role:       models.RoleOperatorAccount,
		IsActive:   true,
	}
	op.ID = uuid.New()
	return op
}

func newTestService(op *models.Operator) *Service {
	repo := &fakeOperatorRepo{
		byEmail: map[string]*models.Operator{op.Email: op},
		byID:    map[uuid.UUID]*models.Operator{op.ID: op},
	}
	return NewService(repo)
}

func TestLoginAndValidate(t *testing.T) {
	op := newTestOperator(t)
	s := newTestService(op)

	resp, err := s.Login(LoginRequest{Email: "op@example.com", Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	claims, err := s.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if claims.OperatorID != op.ID || claims.TelegramID != 7 || claims.Type != "access" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestService(newTestOperator(t))
	if _, err := s.Login(LoginRequest{Email: "op@example.com", Password: "wrong"}); err == nil {
		t.Fatal("Login with wrong password returned no error")
	}
}

func TestLoginDisabledOperator(t *testing.T) {
	op := newTestOperator(t)
	op.IsActive = false
	s := newTestService(op)
	if _, err := s.Login(LoginRequest{Email: "op@example.com", Password: "hunter2"}); err == nil {
		t.Fatal("Login with disabled account returned no error")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	op := newTestOperator(t)
	s := newTestService(op)

	resp, err := s.Login(LoginRequest{Email: "op@example.com", Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, err := s.Refresh(resp.AccessToken); err == nil {
		t.Fatal("Refresh accepted an access token")
	}
	if _, err := s.Refresh(resp.RefreshToken); err != nil {
		t.Fatalf("Refresh rejected a refresh token: %v", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	s := newTestService(newTestOperator(t))
	if _, err := s.ValidateToken("not-a-token"); err == nil {
		t.Fatal("ValidateToken accepted garbage")
	}
}
