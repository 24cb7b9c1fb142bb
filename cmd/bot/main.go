package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/app"
	"relaydesk/internal/db"
	"relaydesk/internal/http/handlers"
	"relaydesk/internal/http/middleware"
	"relaydesk/internal/telemetry"
)

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	// Setup logger
	zerolog.TimeFieldFormat = time.RFC3339
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Initialize telemetry (optional service)
	shutdown, enabled, err := telemetry.InitTelemetry()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		shutdown = func() {}
	} else if enabled {
		log.Info().Msg("Telemetry initialized")
	}
	defer shutdown()

	// Initialize database
	database, err := db.NewDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.RunMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize services
	services := app.NewServices(database)
	defer func() {
		if services.Knowledge != nil {
			services.Knowledge.Close()
		}
	}()

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Telemetry())

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")
	handlers.SetupRoutes(api, services)

	// Register the Telegram webhook when a public URL is configured.
	if webhookURL := os.Getenv("WEBHOOK_URL"); webhookURL != "" {
		if err := services.Transport.SetWebhook(webhookURL+"/api/v1/webhook/telegram", os.Getenv("WEBHOOK_SECRET")); err != nil {
			log.Error().Err(err).Msg("Failed to register Telegram webhook")
		}
	} else {
		log.Warn().Msg("WEBHOOK_URL not set, Telegram webhook not registered")
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Str("port", port).Msg("Server started")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
