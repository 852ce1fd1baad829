// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory    = "memory"
	StorageMongo     = "mongodb"
	StoragePostgres  = "postgres"
	StorageSQLite    = "sqlite"
	StorageFirestore = "firestore"
)

// Identity providers
const (
	AuthLocal    = "local"
	AuthFirebase = "firebase"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
	RequestTimeout time.Duration
}

// StorageConfig selects and configures the key-value backend
type StorageConfig struct {
	Type            string
	URI             string // MongoDB or PostgreSQL connection string
	Database        string // MongoDB database name
	Path            string // SQLite file
	ProjectID       string // Firestore project
	CredentialsFile string
}

// AuthConfig configures the identity provider
type AuthConfig struct {
	Provider        string
	JWTSecret       string
	TokenTTL        time.Duration
	ProjectID       string
	CredentialsFile string
}

// MessagingConfig holds conversation store settings
type MessagingConfig struct {
	// DeliveryDelay is the simulated latency before a sent message becomes delivered.
	DeliveryDelay time.Duration
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Storage        *StorageConfig
	Auth           *AuthConfig
	Messaging      *MessagingConfig
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
		RequestTimeout: 5 * time.Second,
	}
}

func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		Type:     StorageMemory,
		Database: "quickexpert",
		Path:     "quickexpert.db",
	}
}

func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{
		Provider: AuthLocal,
		TokenTTL: 24 * time.Hour,
	}
}

func DefaultMessagingConfig() *MessagingConfig {
	return &MessagingConfig{DeliveryDelay: time.Second}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from multiple possible locations
	envLocations := []string{
		".env",
		"../../.env",
		"../../../.env",
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		// Missing .env is fine, the process environment is used as is
		_ = godotenv.Load()
	}

	return FromEnv()
}

// FromEnv builds the configuration from the current process environment only.
func FromEnv() (*Config, error) {
	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return nil, fmt.Errorf("invalid PORT %q", portStr)
		}
		serverConfig.Port = port
	}

	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}

	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	if err := durationFromEnv("REQUEST_TIMEOUT", &serverConfig.RequestTimeout); err != nil {
		return nil, err
	}

	storageConfig, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server:         serverConfig,
		Storage:        storageConfig,
		Auth:           DefaultAuthConfig(),
		Messaging:      DefaultMessagingConfig(),
		AllowedOrigins: []string{"*"},
		Debug:          os.Getenv("DEBUG") == "true",
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = splitList(origins)
	}

	if err := durationFromEnv("DELIVERY_DELAY", &config.Messaging.DeliveryDelay); err != nil {
		return nil, err
	}
	if config.Messaging.DeliveryDelay < 0 {
		return nil, fmt.Errorf("DELIVERY_DELAY must not be negative")
	}

	if err := loadAuthConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func loadStorageConfig() (*StorageConfig, error) {
	storageConfig := DefaultStorageConfig()

	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		storageConfig.Type = strings.ToLower(storageType)
	}

	switch storageConfig.Type {
	case StorageMemory:
	case StorageMongo:
		storageConfig.URI = os.Getenv("MONGODB_URI")
		if storageConfig.URI == "" {
			return nil, fmt.Errorf("MONGODB_URI environment variable is required when STORAGE_TYPE is mongodb")
		}
		storageConfig.Database = getEnvOrDefault("MONGODB_DATABASE", storageConfig.Database)
	case StoragePostgres:
		uri, err := postgresURI()
		if err != nil {
			return nil, err
		}
		storageConfig.URI = uri
	case StorageSQLite:
		storageConfig.Path = getEnvOrDefault("SQLITE_PATH", storageConfig.Path)
	case StorageFirestore:
		storageConfig.ProjectID = os.Getenv("FIREBASE_PROJECT_ID")
		if storageConfig.ProjectID == "" {
			return nil, fmt.Errorf("FIREBASE_PROJECT_ID environment variable is required when STORAGE_TYPE is firestore")
		}
		storageConfig.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	default:
		return nil, fmt.Errorf("unsupported STORAGE_TYPE %q", storageConfig.Type)
	}

	return storageConfig, nil
}

// postgresURI prioritizes DATABASE_URL and falls back to the individual DB_* variables.
func postgresURI() (string, error) {
	if uri := os.Getenv("DATABASE_URL"); uri != "" {
		return uri, nil
	}

	host := getEnvOrDefault("DB_HOST", "localhost")
	port := 5432
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", fmt.Errorf("invalid DB_PORT %q", portStr)
		}
		port = p
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		return "", fmt.Errorf("DB_USER environment variable is required when STORAGE_TYPE is postgres and DATABASE_URL is not set")
	}
	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		return "", fmt.Errorf("DB_PASSWORD environment variable is required when STORAGE_TYPE is postgres and DATABASE_URL is not set")
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		user,
		password,
		host,
		port,
		getEnvOrDefault("DB_NAME", "postgres"),
		getEnvOrDefault("DB_SSL_MODE", "require"),
	), nil
}

func loadAuthConfig(config *Config) error {
	auth := config.Auth

	if provider := os.Getenv("AUTH_PROVIDER"); provider != "" {
		auth.Provider = strings.ToLower(provider)
	}
	if err := durationFromEnv("TOKEN_TTL", &auth.TokenTTL); err != nil {
		return err
	}

	switch auth.Provider {
	case AuthLocal:
		auth.JWTSecret = os.Getenv("JWT_SECRET")
		if auth.JWTSecret == "" {
			if !config.Debug {
				return fmt.Errorf("JWT_SECRET environment variable is required when AUTH_PROVIDER is local")
			}
			auth.JWTSecret = "quickexpert-debug-secret"
		}
	case AuthFirebase:
		auth.ProjectID = os.Getenv("FIREBASE_PROJECT_ID")
		if auth.ProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID environment variable is required when AUTH_PROVIDER is firebase")
		}
		auth.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	default:
		return fmt.Errorf("unsupported AUTH_PROVIDER %q", auth.Provider)
	}

	return nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationFromEnv(key string, target *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %v", key, value, err)
	}
	*target = d
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
