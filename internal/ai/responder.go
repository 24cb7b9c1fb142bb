// Package ai wraps the hosted language-model completion service behind
// the narrow interface the gateway consumes.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

// Searcher finds relevant knowledge chunks for a user question. The
// knowledge index implements it; nil disables retrieval.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Responder produces automated answers to end user messages.
type Responder struct {
	client       *openai.Client
	search       Searcher
	model        string
	searchChunks int
}

// NewResponder creates a responder. OPENAI_BASE_URL and OPENAI_MODEL
// override the API host and model.
func NewResponder(apiKey string, search Searcher) *Responder {
	config := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}

	return &Responder{
		client:       openai.NewClientWithConfig(config),
		search:       search,
		model:        model,
		searchChunks: 4,
	}
}

// Complete answers one user message with the given system prompt,
// augmenting the prompt with retrieved knowledge chunks when an index
// is configured. Index failures are non-fatal: the completion proceeds
// without retrieval context.
func (r *Responder) Complete(ctx context.Context, userText, systemPrompt string) (string, error) {
	system := systemPrompt
	if r.search != nil {
		chunks, err := r.search.Search(ctx, userText, r.searchChunks)
		if err != nil {
			log.Warn().Err(err).Msg("knowledge search failed, answering without retrieval context")
		} else if len(chunks) > 0 {
			system = systemPrompt + "\n\nReference material that may be relevant:\n" + strings.Join(chunks, "\n---\n")
		}
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
