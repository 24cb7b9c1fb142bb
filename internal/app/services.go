package app

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"relaydesk/internal/ai"
	"relaydesk/internal/auth"
	"relaydesk/internal/gateway"
	"relaydesk/internal/knowledge"
	"relaydesk/internal/repo"
	"relaydesk/internal/services"
	"relaydesk/internal/takeover"
	"relaydesk/internal/transport"
	"relaydesk/internal/ws"
)

// Services holds all application services
type Services struct {
	DB *gorm.DB

	UserRepo     *repo.EndUserRepository
	OperatorRepo *repo.OperatorRepository
	MessageRepo  *repo.MessageRepository
	StateRepo    *repo.ConversationStateRepository
	SessionRepo  *repo.OperatorSessionRepository
	FileRepo     *repo.KnowledgeFileRepository
	SettingRepo  *repo.SettingRepository

	AuthService     *auth.Service
	SettingsService *services.SettingsService
	OpsLogService   *services.OpsLogService
	StorageService  *services.StorageService

	Transport *transport.Client
	Responder *ai.Responder
	Knowledge *knowledge.Index

	Protocol *takeover.Protocol
	Router   *takeover.Router
	Relay    *takeover.Relay

	Hub     *ws.Hub
	Gateway *gateway.Gateway
}

// NewServices creates a new services container
func NewServices(db *gorm.DB) *Services {
	// Repositories
	userRepo := repo.NewEndUserRepository(db)
	operatorRepo := repo.NewOperatorRepository(db)
	messageRepo := repo.NewMessageRepository(db, userRepo, envInt("HISTORY_RETENTION", 200))
	stateRepo := repo.NewConversationStateRepository(db)
	sessionRepo := repo.NewOperatorSessionRepository(db)
	fileRepo := repo.NewKnowledgeFileRepository(db)
	settingRepo := repo.NewSettingRepository(db)

	// Core services
	authService := auth.NewService(operatorRepo)
	settingsService := services.NewSettingsService(settingRepo)
	if err := settingsService.EnsureDefaults(); err != nil {
		log.Warn().Err(err).Msg("failed to seed default settings")
	}

	// Chat transport
	tg := transport.NewClient(os.Getenv("TELEGRAM_BOT_TOKEN"))
	opsLogService := services.NewOpsLogService(tg)

	// Knowledge index (optional)
	var index *knowledge.Index
	openaiAPIKey := os.Getenv("OPENAI_API_KEY")
	qdrantURL := os.Getenv("QDRANT_URL")
	if qdrantURL == "" {
		qdrantURL = "localhost:6334" // default gRPC port
	}
	if openaiAPIKey != "" {
		var err error
		index, err = knowledge.NewIndex(openaiAPIKey, qdrantURL, os.Getenv("QDRANT_API_KEY"))
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize knowledge index, retrieval disabled")
			index = nil
		} else if err := index.CheckHealth(); err != nil {
			log.Warn().Err(err).Str("url", qdrantURL).Msg("qdrant unreachable, retrieval disabled")
			index.Close()
			index = nil
		} else {
			log.Info().Str("url", qdrantURL).Msg("knowledge index connected")
		}
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, knowledge index disabled")
	}

	// Responder; the index is an optional retrieval source.
	var searcher ai.Searcher
	if index != nil {
		searcher = index
	}
	responder := ai.NewResponder(openaiAPIKey, searcher)

	// Document archive (optional)
	storageService, err := services.NewStorageService()
	if err != nil {
		log.Warn().Err(err).Msg("document archive disabled")
		storageService = nil
	}

	// Hand-off state machine
	cfg := takeover.Config{
		Timeout:      time.Duration(envInt("TAKEOVER_TIMEOUT_MINUTES", 20)) * time.Minute,
		HistoryLimit: envInt("HISTORY_LIMIT", 20),
	}
	protocol := takeover.NewProtocol(stateRepo, sessionRepo, cfg)
	router := takeover.NewRouter(protocol)
	relay := takeover.NewRelay(protocol, sessionRepo, messageRepo, tg)

	hub := ws.NewHub(authService)

	deps := gateway.Deps{
		Router:    router,
		Relay:     relay,
		Protocol:  protocol,
		Sessions:  sessionRepo,
		Messages:  messageRepo,
		Transport: tg,
		Operators: operatorRepo,
		Users:     userRepo,
		Responder: responder,
		Settings:  settingsService,
		Documents: tg,
		Notifier:  hub,
	}
	if opsLogService.Enabled() {
		deps.OpsLog = opsLogService
	}
	if index != nil {
		deps.Knowledge = index
		deps.Files = fileRepo
	}
	if storageService != nil {
		deps.Archive = storageService
	}

	return &Services{
		DB:              db,
		UserRepo:        userRepo,
		OperatorRepo:    operatorRepo,
		MessageRepo:     messageRepo,
		StateRepo:       stateRepo,
		SessionRepo:     sessionRepo,
		FileRepo:        fileRepo,
		SettingRepo:     settingRepo,
		AuthService:     authService,
		SettingsService: settingsService,
		OpsLogService:   opsLogService,
		StorageService:  storageService,
		Transport:       tg,
		Responder:       responder,
		Knowledge:       index,
		Protocol:        protocol,
		Router:          router,
		Relay:           relay,
		Hub:             hub,
		Gateway:         gateway.NewGateway(deps),
	}
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
