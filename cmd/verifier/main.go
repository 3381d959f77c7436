package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/greenledger/verification-service/internal/api/routes"
	"github.com/greenledger/verification-service/internal/config"
	"github.com/greenledger/verification-service/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg := config.Load()

	// Initialize Gin router
	router := gin.Default()

	// Setup routes
	routes.Setup(router, cfg)

	// Start server
	logger.Info("Starting verification service on port " + cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server: " + err.Error())
	}
}
