package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	FirebaseStorageBucket   string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	AuthMode                string // firebase or jwt
	JWTSecret               string
	AnthropicAPIKey         string
	AIModel                 string
	AITimeout               time.Duration
	StoreTimeout            time.Duration
	ConvergeTimeout         time.Duration
	MetricsExporter         string // none or stdout
}

// Load reads the environment, after merging a .env file when one exists
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "barrierfree"),
		AuthMode:                getEnv("AUTH_MODE", "firebase"),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		AnthropicAPIKey:         getEnv("ANTHROPIC_API_KEY", ""),
		AIModel:                 getEnv("AI_MODEL", "claude-sonnet-4-5"),
		AITimeout:               getDuration("AI_TIMEOUT", 30*time.Second),
		StoreTimeout:            getDuration("STORE_TIMEOUT", 10*time.Second),
		ConvergeTimeout:         getDuration("CONVERGE_TIMEOUT", 10*time.Second),
		MetricsExporter:         getEnv("METRICS_EXPORTER", "none"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Ignoring invalid %s=%q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
