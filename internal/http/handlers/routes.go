package handlers

import (
	"os"

	"github.com/labstack/echo/v4"

	"relaydesk/internal/app"
	"relaydesk/internal/http/middleware"
)

// SetupRoutes sets up all API routes
func SetupRoutes(api *echo.Group, services *app.Services) {
	// Telegram webhook (authenticated by the shared secret header)
	webhookHandler := NewWebhookHandler(services.Gateway, os.Getenv("WEBHOOK_SECRET"))
	api.POST("/webhook/telegram", webhookHandler.Handle)

	// Auth routes (no authentication required)
	authHandler := NewAuthHandler(services.AuthService, services.OperatorRepo)
	authGroup := api.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)

	// WebSocket endpoint (authenticates via query parameter)
	api.GET("/ws", services.Hub.Handle)

	// Protected console routes
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(services.AuthService))
	protected.Use(middleware.AnyOperator())

	protected.GET("/auth/me", authHandler.Me)

	conversationHandler := NewConversationHandler(services.UserRepo, services.StateRepo, services.MessageRepo, services.Relay, services.Protocol)
	conversations := protected.Group("/conversations")
	conversations.GET("", conversationHandler.List)
	conversations.GET("/:user_id/messages", conversationHandler.History)
	conversations.POST("/:user_id/claim", conversationHandler.Claim)
	conversations.POST("/:user_id/return", conversationHandler.Return)
	conversations.POST("/reply", conversationHandler.Reply)
	conversations.POST("/release", conversationHandler.Release)

	knowledgeHandler := NewKnowledgeHandler(services.FileRepo, services.Knowledge, services.StorageService)
	knowledgeGroup := protected.Group("/knowledge")
	knowledgeGroup.GET("", knowledgeHandler.List)
	knowledgeGroup.POST("", knowledgeHandler.Upload)
	knowledgeGroup.GET("/:id/download", knowledgeHandler.Download)
	knowledgeGroup.DELETE("/:id", knowledgeHandler.Delete)

	// Prompt management is admin-only
	settingsHandler := NewSettingsHandler(services.SettingsService)
	settingsGroup := protected.Group("/settings", middleware.AdminOnly())
	settingsGroup.GET("/prompt", settingsHandler.GetPrompt)
	settingsGroup.PUT("/prompt", settingsHandler.UpdatePrompt)
}
