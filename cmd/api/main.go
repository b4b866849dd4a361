package main

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/justsurfingit/jobtrackai/internal/auth"
	"github.com/justsurfingit/jobtrackai/internal/config"
	"github.com/justsurfingit/jobtrackai/internal/database"
	"github.com/justsurfingit/jobtrackai/internal/handlers"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/services"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log, err := logger.New(config.GetEnv("LOG_MODE", "development"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db := database.Connect(log)

	ctx := context.Background()
	llm, err := services.NewLLMService(ctx, log)
	if err != nil {
		log.Fatal("Failed to initialize language model client", "error", err)
	}

	jobService := services.NewJobService(db, log)
	convService := services.NewConversationService(db, log)
	intentService := services.NewIntentService(llm, log)
	extractionService := services.NewExtractionService(llm, log)
	responseService := services.NewResponseService(llm, log)
	linkService := services.NewLinkService(log)

	agentService := services.NewAgentService(
		intentService,
		extractionService,
		responseService,
		jobService,
		convService,
		linkService,
		log,
	)

	startEmailWatcher(ctx, db, llm, jobService, log)

	agentHandler := handlers.NewAgentHandler(agentService)
	jobHandler := handlers.NewJobHandler(jobService)

	if config.GetEnv("LOG_MODE", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	api := r.Group("/api/v1")
	{
		api.GET("/health", handlers.HealthCheck)

		api.POST("/agent/message", agentHandler.HandleMessage)

		api.GET("/jobs", jobHandler.ListJobs)
		api.POST("/jobs", jobHandler.CreateJob)
		api.PATCH("/jobs/:id/status", jobHandler.UpdateJobStatus)
		api.DELETE("/jobs/:id", jobHandler.DeleteJob)
		api.GET("/jobs/stats", jobHandler.JobStats)
	}

	port := config.GetEnv("PORT", "8080")
	log.Info("Server starting", "port", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Server failed to start", "error", err)
	}
}

// startEmailWatcher wires the optional Gmail integration. A missing user id
// or missing credentials disable it without affecting the API.
func startEmailWatcher(ctx context.Context, db *gorm.DB, llm *services.LLMService, jobs services.JobStore, log *logger.Logger) {
	rawUser := config.GetEnv("WATCHER_USER_ID", "")
	if rawUser == "" {
		log.Info("Email watcher disabled, WATCHER_USER_ID not set")
		return
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		log.Warn("Email watcher disabled, WATCHER_USER_ID is not a UUID", "value", rawUser)
		return
	}

	httpClient, err := auth.GmailClient(ctx, log)
	if err != nil {
		log.Warn("Email watcher disabled, Gmail auth unavailable", "error", err)
		return
	}
	gmailService, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		log.Warn("Email watcher disabled, Gmail service init failed", "error", err)
		return
	}

	matcher := services.NewMatcherService(jobs, log)
	emailService := services.NewEmailService(db, llm, jobs, matcher, gmailService, userID, log)
	emailService.StartWatcher(config.GetEnvAsDuration("EMAIL_SYNC_INTERVAL", 15*time.Minute))
}
