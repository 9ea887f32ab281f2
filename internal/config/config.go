package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Sync      SyncConfig
	Adapter   AdapterConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type SyncConfig struct {
	DeviceID     string
	DeviceName   string
	AutoSync     bool
	SyncInterval time.Duration
	LockTTL      time.Duration
}

type AdapterConfig struct {
	Backend string

	CloudURL         string
	CloudTokenSecret string

	FilesystemDir string

	PeerAddr          string
	PeerPairingSecret string
	PeerSecretHash    string
}

type WebSocketConfig struct {
	MaxClients int
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
	JSON  bool
}

func Load() (*Config, error) {
	godotenv.Load()

	syncInterval, err := time.ParseDuration(getEnv("SYNC_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}

	lockTTL, err := time.ParseDuration(getEnv("LOCK_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TTL: %w", err)
	}

	backend := getEnv("SYNC_BACKEND", "filesystem")
	switch backend {
	case "cloud", "filesystem", "peer":
	default:
		return nil, fmt.Errorf("invalid SYNC_BACKEND: %q", backend)
	}

	deviceID := getEnv("DEVICE_ID", "")
	if deviceID == "" {
		return nil, fmt.Errorf("DEVICE_ID is required")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8090"),
			Host: getEnv("HOST", "127.0.0.1"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "atelier_sync"),
		},
		Sync: SyncConfig{
			DeviceID:     deviceID,
			DeviceName:   getEnv("DEVICE_NAME", deviceID),
			AutoSync:     getEnvAsBool("AUTO_SYNC", false),
			SyncInterval: syncInterval,
			LockTTL:      lockTTL,
		},
		Adapter: AdapterConfig{
			Backend:           backend,
			CloudURL:          getEnv("CLOUD_RELAY_URL", ""),
			CloudTokenSecret:  getEnv("CLOUD_TOKEN_SECRET", ""),
			FilesystemDir:     getEnv("SHARED_SYNC_DIR", ""),
			PeerAddr:          getEnv("PEER_ADDR", ""),
			PeerPairingSecret: getEnv("PEER_PAIRING_SECRET", ""),
			PeerSecretHash:    getEnv("PEER_SECRET_HASH", ""),
		},
		WebSocket: WebSocketConfig{
			MaxClients: getEnvAsInt("WS_MAX_CLIENTS", 8),
			WriteWait:  10 * time.Second,
			PongWait:   60 * time.Second,
			PingPeriod: 54 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  getEnvAsBool("LOG_JSON", false),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
