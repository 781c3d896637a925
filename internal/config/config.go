package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Relay   RelayConfig
	Session SessionConfig
	API     APIConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
}

type RelayConfig struct {
	Port               string
	CorsAllowedOrigins string
	JWTSecret          string
	RedisURL           string
	NatsURL            string
}

// SessionConfig describes one (project, user) pairing for the workspace
// client. The token authenticates the websocket handshake; it is not resent
// per message.
type SessionConfig struct {
	Endpoint          string
	AuthToken         string
	ProjectID         string
	UserID            string
	UserEmail         string
	UserName          string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

type APIConfig struct {
	BaseURL   string
	RosterTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "codecollab.log"),
		},
		Relay: RelayConfig{
			Port:               getEnv("RELAY_PORT", "8000"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			NatsURL:            getEnv("NATS_URL", ""),
		},
		Session: SessionConfig{
			Endpoint:          getEnv("RELAY_ENDPOINT", "ws://localhost:8000/ws"),
			AuthToken:         getEnv("AUTH_TOKEN", ""),
			ProjectID:         getEnv("PROJECT_ID", ""),
			UserID:            getEnv("USER_ID", ""),
			UserEmail:         getEnv("USER_EMAIL", ""),
			UserName:          getEnv("USER_NAME", ""),
			ReconnectAttempts: getEnvAsInt("RECONNECT_ATTEMPTS", 5),
			ReconnectDelay:    time.Duration(getEnvAsInt("RECONNECT_DELAY_MS", 1000)) * time.Millisecond,
		},
		API: APIConfig{
			BaseURL:   getEnv("API_BASE_URL", "http://localhost:8000/api"),
			RosterTTL: time.Duration(getEnvAsInt("ROSTER_TTL_SECONDS", 300)) * time.Second,
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
