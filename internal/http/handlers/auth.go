package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"relaydesk/internal/auth"
	"relaydesk/internal/repo"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.Service
	operators   *repo.OperatorRepository
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, operators *repo.OperatorRepository) *AuthHandler {
	return &AuthHandler{authService: authService, operators: operators}
}

// Login authenticates an operator and returns JWT tokens
func (h *AuthHandler) Login(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	response, err := h.authService.Login(req)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, response)
}

// Refresh generates new tokens from a refresh token
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	response, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, response)
}

// Me returns the authenticated operator's account
func (h *AuthHandler) Me(c echo.Context) error {
	claims, ok := c.Get("claims").(*auth.TokenClaims)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	op, err := h.operators.GetByID(claims.OperatorID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Operator not found"})
	}
	return c.JSON(http.StatusOK, op)
}
