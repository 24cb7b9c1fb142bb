package services

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"relaydesk/pkg/models"
)

const builtinAgentPrompt = `You are a friendly and capable support assistant.
Answer briefly, to the point, in plain language.
Reply in the language the user writes in.
If the question is unclear, ask for clarification.`

// SettingRepository is the slice of the setting repo the service needs.
type SettingRepository interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// SettingsService manages runtime agent settings.
type SettingsService struct {
	repo SettingRepository
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo SettingRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// EnsureDefaults seeds the agent prompt on first boot. The default
// comes from SYSTEM_PROMPT or the built-in fallback.
func (s *SettingsService) EnsureDefaults() error {
	current, err := s.repo.Get(models.SettingAgentPrompt)
	if err != nil {
		return err
	}
	if current != "" {
		log.Info().Msg("agent prompt loaded from settings")
		return nil
	}

	prompt := os.Getenv("SYSTEM_PROMPT")
	if prompt == "" {
		prompt = builtinAgentPrompt
	}
	if err := s.repo.Set(models.SettingAgentPrompt, prompt); err != nil {
		return err
	}
	log.Info().Msg("agent prompt not found in settings, seeded default")
	return nil
}

// AgentPrompt returns the current system prompt for the automated agent.
func (s *SettingsService) AgentPrompt() (string, error) {
	prompt, err := s.repo.Get(models.SettingAgentPrompt)
	if err != nil {
		return "", err
	}
	if prompt == "" {
		return builtinAgentPrompt, nil
	}
	return prompt, nil
}

// SetAgentPrompt replaces the system prompt. Empty prompts are rejected.
func (s *SettingsService) SetAgentPrompt(prompt string) error {
	if prompt == "" {
		return fmt.Errorf("agent prompt cannot be empty")
	}
	return s.repo.Set(models.SettingAgentPrompt, prompt)
}
