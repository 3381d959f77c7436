package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Server Configuration
	Port string

	// Database Configuration
	DatabaseURL string

	// Authorization Configuration
	AdminAddress string

	// Verification Configuration
	VerificationWindowHours int // expiry window for new requests
	CommunityQuorum         int // validators required for community consensus

	// Attestation Configuration
	ChainRPC        string
	ContractAddress string
	PrivateKey      string
}

func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "8080"),

		// Database
		DatabaseURL: os.Getenv("DATABASE_URL"),

		// Authorization
		AdminAddress: getEnv("ADMIN_ADDRESS", "admin"),

		// Verification
		VerificationWindowHours: getIntEnv("VERIFICATION_WINDOW_HOURS", 168), // one week
		CommunityQuorum:         getIntEnv("COMMUNITY_QUORUM", 3),

		// Attestation
		ChainRPC:        os.Getenv("CHAIN_RPC_URL"),
		ContractAddress: os.Getenv("CONTRACT_ADDRESS"),
		PrivateKey:      os.Getenv("PRIVATE_KEY"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fallback
		}
		return intVal
	}
	return fallback
}
