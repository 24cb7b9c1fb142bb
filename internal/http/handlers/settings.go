package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"relaydesk/internal/services"
)

// SettingsHandler exposes runtime agent settings to the console.
type SettingsHandler struct {
	settings *services.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetPrompt returns the current agent system prompt.
func (h *SettingsHandler) GetPrompt(c echo.Context) error {
	prompt, err := h.settings.AgentPrompt()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load prompt"})
	}
	return c.JSON(http.StatusOK, map[string]string{"prompt": prompt})
}

// UpdatePrompt replaces the agent system prompt.
func (h *SettingsHandler) UpdatePrompt(c echo.Context) error {
	var req struct {
		Prompt string `json:"prompt" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.settings.SetAgentPrompt(req.Prompt); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
