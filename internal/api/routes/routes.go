package routes

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/greenledger/verification-service/internal/api/handlers"
	"github.com/greenledger/verification-service/internal/attestor"
	"github.com/greenledger/verification-service/internal/auth"
	"github.com/greenledger/verification-service/internal/config"
	"github.com/greenledger/verification-service/internal/consensus"
	"github.com/greenledger/verification-service/internal/models"
	"github.com/greenledger/verification-service/internal/repository"
	"github.com/greenledger/verification-service/internal/service"
	"github.com/greenledger/verification-service/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Setup(router *gin.Engine, cfg *config.Config) {
	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Initialize components
	repo := repository.NewVerificationRepository(db)
	engine := consensus.NewEngine(uint8(cfg.CommunityQuorum))
	guard := auth.NewGuard(cfg.AdminAddress)

	var att service.Attestor
	if cfg.ChainRPC != "" && cfg.ContractAddress != "" && cfg.PrivateKey != "" {
		client, err := attestor.NewClient(cfg.ChainRPC, cfg.ContractAddress, cfg.PrivateKey)
		if err != nil {
			logger.Error("Failed to initialize attestor client", zap.Error(err))
		} else {
			att = client
		}
	}

	verificationService := service.NewVerificationService(
		repo,
		engine,
		guard,
		att,
		time.Duration(cfg.VerificationWindowHours)*time.Hour,
	)

	handler := handlers.NewVerificationHandler(verificationService)

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Activity routes
		v1.POST("/activities", handler.SubmitActivity)
		v1.GET("/activities", handler.ListActivities)
		v1.GET("/activities/:id", handler.GetActivity)
		v1.GET("/activities/:id/request", handler.GetVerificationRequest)
		v1.GET("/activities/:id/expired", handler.IsExpired)
		v1.POST("/activities/:id/votes", handler.CastVote)
		v1.GET("/activities/:id/votes", handler.ListVotes)
		v1.GET("/activities/:id/votes/:validator", handler.GetVote)
		v1.POST("/activities/:id/external", handler.SubmitExternalVerification)
		v1.POST("/activities/:id/review", handler.ReviewMediaEvidence)
		v1.POST("/activities/:id/reject", handler.RejectVerification)

		// Validator routes
		v1.POST("/validators", handler.RegisterValidator)
		v1.GET("/validators/:address", handler.GetValidatorInfo)
		v1.POST("/validators/:address/deactivate", handler.DeactivateValidator)

		// Admin routes
		admin := v1.Group("/admin")
		{
			admin.POST("/transfer", handler.TransferAdmin)
			admin.GET("/stats", handler.GetStats)
		}
	}
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	if cfg.DatabaseURL == "" {
		logger.Info("No database URL configured, using in-memory SQLite")
		// Use pure Go SQLite (no CGO required)
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
		}
	} else {
		logger.Info("Connecting to PostgreSQL database")
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			return nil, err
		}
	}

	// Auto-migrate models
	err = db.AutoMigrate(
		&models.Activity{},
		&models.VerificationRequest{},
		&models.Validator{},
		&models.Validation{},
		&models.AuditEntry{},
		&models.Attestation{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database initialized successfully")
	return db, nil
}
