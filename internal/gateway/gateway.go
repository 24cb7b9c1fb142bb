// Package gateway orchestrates inbound chat traffic: it classifies the
// sender, consults the hand-off state machine and drives the automated
// responder, the operator relay and the knowledge pipeline.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/takeover"
	"relaydesk/pkg/models"
)

const failureReply = "Sorry, something went wrong while answering. Please try again in a moment."

// Inbound is one normalized message from the chat platform.
type Inbound struct {
	SenderID int64
	Username string
	Text     string
	Document *InboundDocument
}

// InboundDocument describes a file attached to an inbound message.
type InboundDocument struct {
	FileID   string
	Filename string
	MimeType string
	FileSize int64
}

// OperatorDirectory resolves chat senders to operator accounts.
type OperatorDirectory interface {
	GetActiveByTelegramID(telegramID int64) (*models.Operator, error)
}

// UserDirectory creates and refreshes end user records.
type UserDirectory interface {
	Ensure(telegramID int64, username string) (*models.EndUser, error)
}

// Responder produces automated answers.
type Responder interface {
	Complete(ctx context.Context, userText, systemPrompt string) (string, error)
}

// Settings exposes the runtime agent prompt.
type Settings interface {
	AgentPrompt() (string, error)
	SetAgentPrompt(prompt string) error
}

// OpsLog mirrors traffic into the operations log chat.
type OpsLog interface {
	AIExchange(user *models.EndUser, question, answer string)
	ManualInbound(user *models.EndUser, question string)
}

// KnowledgeIndex ingests reference documents.
type KnowledgeIndex interface {
	Upload(ctx context.Context, docID, filename string, data []byte) (int, error)
}

// Archive stores raw document bytes.
type Archive interface {
	Archive(key string, data []byte, contentType string) (string, error)
}

// DocumentFetcher downloads attached files from the chat platform.
type DocumentFetcher interface {
	FetchDocument(fileID string) ([]byte, error)
}

// FileRecords persists knowledge file metadata.
type FileRecords interface {
	Create(file *models.KnowledgeFile) error
	List(limit, offset int) ([]models.KnowledgeFile, error)
}

// Notifier pushes events to connected console clients.
type Notifier interface {
	Broadcast(event string, data interface{})
}

// Deps collects the gateway's collaborators. OpsLog, Knowledge, Archive,
// Files and Notifier are optional; nil disables the feature.
type Deps struct {
	Router    *takeover.Router
	Relay     *takeover.Relay
	Protocol  *takeover.Protocol
	Sessions  takeover.SessionStore
	Messages  takeover.MessageLog
	Transport takeover.Transport
	Operators OperatorDirectory
	Users     UserDirectory
	Responder Responder
	Settings  Settings
	OpsLog    OpsLog
	Knowledge KnowledgeIndex
	Archive   Archive
	Documents DocumentFetcher
	Files     FileRecords
	Notifier  Notifier
}

// Gateway routes every inbound message to the right collaborator.
type Gateway struct {
	deps Deps
	now  func() time.Time
}

// NewGateway creates a new gateway.
func NewGateway(deps Deps) *Gateway {
	return &Gateway{deps: deps, now: time.Now}
}

// HandleInbound processes one inbound message end to end. Errors are
// internal failures; user-facing problems are answered in-band.
func (g *Gateway) HandleInbound(ctx context.Context, in Inbound) error {
	op, err := g.deps.Operators.GetActiveByTelegramID(in.SenderID)
	if err != nil {
		return fmt.Errorf("failed to resolve sender: %w", err)
	}
	if op != nil {
		return g.handleOperator(ctx, op, in)
	}
	return g.handleUser(ctx, in)
}

// --- end user path ---

func (g *Gateway) handleUser(ctx context.Context, in Inbound) error {
	user, err := g.deps.Users.Ensure(in.SenderID, in.Username)
	if err != nil {
		return fmt.Errorf("failed to ensure user record: %w", err)
	}

	if in.Text == "" {
		if in.Document != nil {
			return g.deps.Transport.SendMessage(in.SenderID, "Sorry, I can only read text messages.")
		}
		return nil
	}
	if in.Text == "/start" {
		return g.deps.Transport.SendMessage(in.SenderID, "Hello! Ask me anything and I will do my best to help.")
	}

	action, err := g.deps.Router.Route(user.TelegramID, in.Text, g.now())
	if err != nil {
		return fmt.Errorf("failed to route message: %w", err)
	}

	if action.Kind == takeover.ForwardToOperator {
		return g.forwardToOperator(user, action)
	}
	return g.respondAutomated(ctx, user, in.Text)
}

func (g *Gateway) forwardToOperator(user *models.EndUser, action takeover.Action) error {
	if err := g.deps.Messages.Append(user.TelegramID, models.RoleUser, action.Text); err != nil {
		return err
	}
	g.broadcast("message.created", map[string]interface{}{
		"user_telegram_id": user.TelegramID,
		"role":             models.RoleUser,
		"content":          action.Text,
	})

	forward := fmt.Sprintf("Message from %s:\n%s", userLabel(user), action.Text)
	if err := g.deps.Transport.SendMessage(action.OperatorID, forward); err != nil {
		// Operator delivery failure must not drop the message; it is
		// persisted and visible in the console.
		log.Error().Err(err).Int64("operator_id", action.OperatorID).Msg("failed to forward message to operator")
	}
	if g.deps.OpsLog != nil {
		g.deps.OpsLog.ManualInbound(user, action.Text)
	}
	return nil
}

func (g *Gateway) respondAutomated(ctx context.Context, user *models.EndUser, text string) error {
	if err := g.deps.Messages.Append(user.TelegramID, models.RoleUser, text); err != nil {
		return err
	}
	g.broadcast("message.created", map[string]interface{}{
		"user_telegram_id": user.TelegramID,
		"role":             models.RoleUser,
		"content":          text,
	})

	prompt, err := g.deps.Settings.AgentPrompt()
	if err != nil {
		log.Error().Err(err).Msg("failed to load agent prompt")
		return g.deps.Transport.SendMessage(user.TelegramID, failureReply)
	}

	answer, err := g.deps.Responder.Complete(ctx, text, prompt)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.TelegramID).Msg("completion failed")
		return g.deps.Transport.SendMessage(user.TelegramID, failureReply)
	}

	if err := g.deps.Messages.Append(user.TelegramID, models.RoleAssistant, answer); err != nil {
		return err
	}
	g.broadcast("message.created", map[string]interface{}{
		"user_telegram_id": user.TelegramID,
		"role":             models.RoleAssistant,
		"content":          answer,
	})

	if err := g.deps.Transport.SendMessage(user.TelegramID, answer); err != nil {
		return fmt.Errorf("failed to deliver answer: %w", err)
	}
	if g.deps.OpsLog != nil {
		g.deps.OpsLog.AIExchange(user, text, answer)
	}
	return nil
}

// --- operator path ---

func (g *Gateway) handleOperator(ctx context.Context, op *models.Operator, in Inbound) error {
	session, err := g.deps.Sessions.Get(op.TelegramID)
	if err != nil {
		return err
	}

	if in.Document != nil {
		if session != nil && session.PendingInput == models.PendingAwaitingFile {
			return g.ingestDocument(ctx, op, session, in.Document)
		}
		return g.reply(op, "Use /upload first if you want to add this file to the knowledge base.")
	}

	if strings.HasPrefix(in.Text, "/") {
		return g.handleCommand(op, session, in.Text)
	}

	if session != nil && session.PendingInput == models.PendingAwaitingPrompt {
		return g.applyPromptUpdate(op, session, in.Text)
	}
	if session != nil && session.PendingInput == models.PendingAwaitingFile {
		return g.reply(op, "Waiting for a document. Send a file, or /cancel to abort.")
	}

	return g.relayReply(op, in.Text)
}

func (g *Gateway) handleCommand(op *models.Operator, session *models.OperatorSession, text string) error {
	fields := strings.Fields(text)
	command := fields[0]
	args := fields[1:]

	// Any command cancels a pending prompt/file exchange.
	if session != nil && session.PendingInput != models.PendingIdle && command != "/cancel" {
		session.PendingInput = models.PendingIdle
		if err := g.deps.Sessions.Upsert(session); err != nil {
			return err
		}
	}

	switch command {
	case "/start":
		if len(args) == 1 && strings.HasPrefix(args[0], "chat_") {
			userID, err := strconv.ParseInt(strings.TrimPrefix(args[0], "chat_"), 10, 64)
			if err != nil {
				return g.reply(op, "Malformed conversation link.")
			}
			return g.openConversation(op, userID)
		}
		return g.reply(op, operatorHelp)
	case "/chat":
		if len(args) != 1 {
			return g.reply(op, "Usage: /chat <user id>")
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return g.reply(op, "Usage: /chat <user id>")
		}
		return g.openConversation(op, userID)
	case "/close":
		if err := g.deps.Protocol.Release(op.TelegramID); err != nil {
			return err
		}
		return g.reply(op, "Conversation closed. The claim stays active until /ai or timeout.")
	case "/ai":
		return g.returnToAutomated(op, session)
	case "/prompt":
		return g.startPromptUpdate(op, session)
	case "/upload":
		return g.startFileUpload(op, session)
	case "/files":
		return g.listFiles(op)
	case "/cancel":
		if session != nil && session.PendingInput != models.PendingIdle {
			session.PendingInput = models.PendingIdle
			if err := g.deps.Sessions.Upsert(session); err != nil {
				return err
			}
		}
		return g.reply(op, "Cancelled.")
	default:
		return g.reply(op, operatorHelp)
	}
}

const operatorHelp = `Operator commands:
/chat <user id> - take over a conversation
/close - close the current conversation view
/ai - hand the conversation back to the assistant
/prompt - update the assistant system prompt
/upload - add a document to the knowledge base
/files - list knowledge base documents
/cancel - abort a pending prompt or upload`

func (g *Gateway) openConversation(op *models.Operator, userID int64) error {
	history, err := g.deps.Relay.OpenSession(op.TelegramID, userID, g.now())
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are now talking to user %d. Messages you send will be relayed.\n", userID)
	if len(history) == 0 {
		b.WriteString("\nNo conversation history yet.")
	} else {
		b.WriteString("\nRecent history:")
		for _, msg := range history {
			fmt.Fprintf(&b, "\n[%s] %s", msg.Role, msg.Content)
		}
	}

	g.broadcast("conversation.claimed", map[string]interface{}{
		"user_telegram_id":     userID,
		"operator_telegram_id": op.TelegramID,
	})
	return g.reply(op, b.String())
}

func (g *Gateway) returnToAutomated(op *models.Operator, session *models.OperatorSession) error {
	if session == nil || session.ActiveUserID == nil {
		return g.reply(op, "No active conversation. Open one with /chat <user id> first.")
	}
	userID := *session.ActiveUserID
	if err := g.deps.Protocol.ReturnToAutomated(userID, op.TelegramID); err != nil {
		return err
	}

	// Best effort: tell the user who answers from now on.
	if err := g.deps.Transport.SendMessage(userID, "You are now talking to the automated assistant again."); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to notify user about hand-back")
	}
	g.broadcast("conversation.released", map[string]interface{}{
		"user_telegram_id":     userID,
		"operator_telegram_id": op.TelegramID,
	})
	return g.reply(op, fmt.Sprintf("Conversation with user %d handed back to the assistant.", userID))
}

func (g *Gateway) relayReply(op *models.Operator, text string) error {
	userID, err := g.deps.Relay.OperatorReply(op.TelegramID, text)
	if err != nil {
		if errors.Is(err, takeover.ErrNoActiveSession) {
			return g.reply(op, "No active conversation. Open one with /chat <user id> first.")
		}
		if userID != 0 {
			// Stored but not delivered.
			return g.reply(op, fmt.Sprintf("Reply saved but could not be delivered to user %d.", userID))
		}
		return err
	}
	g.broadcast("message.created", map[string]interface{}{
		"user_telegram_id": userID,
		"role":             models.RoleOperator,
		"content":          text,
	})
	return nil
}

// --- prompt management ---

func (g *Gateway) startPromptUpdate(op *models.Operator, session *models.OperatorSession) error {
	current, err := g.deps.Settings.AgentPrompt()
	if err != nil {
		return err
	}
	if err := g.setPending(op, session, models.PendingAwaitingPrompt); err != nil {
		return err
	}
	return g.reply(op, fmt.Sprintf("Current system prompt:\n\n%s\n\nSend the new prompt, or /cancel.", current))
}

func (g *Gateway) applyPromptUpdate(op *models.Operator, session *models.OperatorSession, text string) error {
	session.PendingInput = models.PendingIdle
	if err := g.deps.Sessions.Upsert(session); err != nil {
		return err
	}
	if err := g.deps.Settings.SetAgentPrompt(text); err != nil {
		return g.reply(op, "Could not save the prompt: "+err.Error())
	}
	log.Info().Int64("operator_id", op.TelegramID).Msg("agent prompt updated")
	return g.reply(op, "System prompt updated.")
}

// --- knowledge pipeline ---

func (g *Gateway) startFileUpload(op *models.Operator, session *models.OperatorSession) error {
	if g.deps.Knowledge == nil || g.deps.Files == nil {
		return g.reply(op, "The knowledge base is not configured on this deployment.")
	}
	if err := g.setPending(op, session, models.PendingAwaitingFile); err != nil {
		return err
	}
	return g.reply(op, "Send the document to index, or /cancel.")
}

func (g *Gateway) ingestDocument(ctx context.Context, op *models.Operator, session *models.OperatorSession, doc *InboundDocument) error {
	session.PendingInput = models.PendingIdle
	if err := g.deps.Sessions.Upsert(session); err != nil {
		return err
	}
	if g.deps.Knowledge == nil || g.deps.Files == nil {
		return g.reply(op, "The knowledge base is not configured on this deployment.")
	}

	data, err := g.deps.Documents.FetchDocument(doc.FileID)
	if err != nil {
		log.Error().Err(err).Str("file_id", doc.FileID).Msg("failed to fetch document")
		return g.reply(op, "Could not download the file from Telegram. Try again.")
	}

	record := &models.KnowledgeFile{
		Filename:       doc.Filename,
		TelegramFileID: doc.FileID,
		MimeType:       doc.MimeType,
		FileSize:       int64(len(data)),
		UploadedBy:     op.TelegramID,
	}
	record.ID = uuid.New()

	if g.deps.Archive != nil {
		key := fmt.Sprintf("knowledge/%s/%s", record.ID, doc.Filename)
		storageKey, err := g.deps.Archive.Archive(key, data, doc.MimeType)
		if err != nil {
			// Archival is secondary to indexing; keep going.
			log.Warn().Err(err).Str("filename", doc.Filename).Msg("failed to archive document")
		} else {
			record.StorageKey = storageKey
		}
	}

	chunks, err := g.deps.Knowledge.Upload(ctx, record.ID.String(), doc.Filename, data)
	if err != nil {
		log.Error().Err(err).Str("filename", doc.Filename).Msg("failed to index document")
		return g.reply(op, "Could not index the document: "+err.Error())
	}
	record.ChunkCount = chunks

	if err := g.deps.Files.Create(record); err != nil {
		return err
	}

	g.broadcast("knowledge.uploaded", map[string]interface{}{
		"id":          record.ID,
		"filename":    record.Filename,
		"chunk_count": record.ChunkCount,
	})
	return g.reply(op, fmt.Sprintf("Indexed %q: %d chunks.", doc.Filename, chunks))
}

func (g *Gateway) listFiles(op *models.Operator) error {
	if g.deps.Files == nil {
		return g.reply(op, "The knowledge base is not configured on this deployment.")
	}
	files, err := g.deps.Files.List(20, 0)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return g.reply(op, "The knowledge base is empty. Add documents with /upload.")
	}

	var b strings.Builder
	b.WriteString("Knowledge base documents:")
	for _, f := range files {
		fmt.Fprintf(&b, "\n- %s (%d chunks, %d bytes)", f.Filename, f.ChunkCount, f.FileSize)
	}
	return g.reply(op, b.String())
}

// --- helpers ---

func (g *Gateway) setPending(op *models.Operator, session *models.OperatorSession, pending string) error {
	if session == nil {
		session = &models.OperatorSession{OperatorTelegramID: op.TelegramID}
	}
	session.PendingInput = pending
	return g.deps.Sessions.Upsert(session)
}

func (g *Gateway) reply(op *models.Operator, text string) error {
	return g.deps.Transport.SendMessage(op.TelegramID, text)
}

func (g *Gateway) broadcast(event string, data interface{}) {
	if g.deps.Notifier != nil {
		g.deps.Notifier.Broadcast(event, data)
	}
}

func userLabel(user *models.EndUser) string {
	if user.Username != "" {
		return fmt.Sprintf("@%s (id: %d)", user.Username, user.TelegramID)
	}
	return fmt.Sprintf("id:%d", user.TelegramID)
}
