package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	Port     string
	LogLevel string

	// Text generation
	GeminiAPIKey string
	GeminiModel  string

	// Garment fitting space
	TryOnSpaceURL string
	TryOnAPIName  string
	HFToken       string
	TryOnTimeout  time.Duration

	// Sample images and uploads
	HumanImagesDir   string
	GarmentImagesDir string
	UploadDir        string
	KeepUploads      bool
	MaxUploadMB      int64

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Rate limiting on try-on routes
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Optional try-on history and result archive
	MongoURI      string
	DBName        string
	AWSRegion     string
	AWSBucketName string
)

// LoadConfig loads environment variables from .env file.
// The Gemini credential is mandatory; without it the chat client cannot be configured.
func LoadConfig() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	Port = getEnv("PORT", "8080")
	LogLevel = getEnv("LOG_LEVEL", "info")

	GeminiAPIKey = os.Getenv("API_KEY")
	if GeminiAPIKey == "" {
		return fmt.Errorf("API_KEY is not set")
	}
	GeminiModel = getEnv("GEMINI_MODEL", "gemini-1.5-flash")

	TryOnSpaceURL = getEnv("TRYON_SPACE_URL", "https://yisol-idm-vton.hf.space")
	TryOnAPIName = getEnv("TRYON_API_NAME", "/tryon")
	HFToken = os.Getenv("HF_TOKEN")
	TryOnTimeout = getDurationEnv("TRYON_TIMEOUT", 5*time.Minute)

	HumanImagesDir = getEnv("HUMAN_IMAGES_DIR", "example")
	GarmentImagesDir = getEnv("GARMENT_IMAGES_DIR", "sample_garments")
	UploadDir = getEnv("UPLOAD_DIR", os.TempDir())
	KeepUploads = getBoolEnv("KEEP_UPLOADS", false)
	MaxUploadMB = int64(getIntEnv("MAX_UPLOAD_MB", 10))

	SessionSecret = os.Getenv("SESSION_SECRET")
	SessionTTL = getDurationEnv("SESSION_TTL", 12*time.Hour)

	RateLimitRequests = getIntEnv("RATE_LIMIT_REQUESTS", 10)
	RateLimitWindow = getDurationEnv("RATE_LIMIT_WINDOW", time.Minute)

	MongoURI = os.Getenv("MONGO_URI")
	DBName = getEnv("DB_NAME", "vton")
	AWSRegion = getEnv("AWS_REGION", "us-east-1")
	AWSBucketName = os.Getenv("AWS_BUCKET_NAME")

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
