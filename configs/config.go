// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	// Gemini AI Configuration
	GEMINI_API_KEY   string
	MODEL_NAME       string // multimodal model for identify/details/search tasks
	IMAGE_MODEL_NAME string // model used for product photo synthesis

	// Gemini Pricing Configuration (per 1M tokens in USD)
	GEMINI_INPUT_PRICE_PER_MILLION  float64
	GEMINI_OUTPUT_PRICE_PER_MILLION float64

	// Server Configuration
	PORT            string
	ALLOWED_ORIGINS string

	// Search behaviour
	SEARCH_RADIUS_KM     int // geo scope for nearby shop search
	MAX_NEARBY_SHOPS     int
	MAX_SIMILAR_PRODUCTS int

	// Session handling
	SESSION_TTL_MINUTES int

	// Pipeline timeout (seconds) for one full analysis run
	ANALYZE_TIMEOUT int

	// Image handling
	MAX_IMAGE_DIMENSION int
	IMAGE_PROXY_URL     string // cross-origin proxy for fetching similar-product reference images
)

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Required: Gemini API Key
	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	if GEMINI_API_KEY == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	// Optional with defaults
	MODEL_NAME = getEnv("MODEL_NAME", "gemini-2.5-flash")
	IMAGE_MODEL_NAME = getEnv("IMAGE_MODEL_NAME", "gemini-2.0-flash-preview-image-generation")

	// Gemini Pricing (default to Flash pricing)
	GEMINI_INPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_INPUT_PRICE_PER_MILLION", 0.30)
	GEMINI_OUTPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_OUTPUT_PRICE_PER_MILLION", 2.50)

	PORT = getEnv("PORT", "8080")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")

	SEARCH_RADIUS_KM = getEnvInt("SEARCH_RADIUS_KM", 20)
	MAX_NEARBY_SHOPS = getEnvInt("MAX_NEARBY_SHOPS", 5)
	MAX_SIMILAR_PRODUCTS = getEnvInt("MAX_SIMILAR_PRODUCTS", 6)

	SESSION_TTL_MINUTES = getEnvInt("SESSION_TTL_MINUTES", 30)

	ANALYZE_TIMEOUT = getEnvInt("ANALYZE_TIMEOUT", 90)

	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", 2000)
	IMAGE_PROXY_URL = getEnv("IMAGE_PROXY_URL", "https://api.allorigins.win/raw?url=")

	log.Println("✓ Configuration loaded successfully")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
