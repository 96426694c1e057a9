package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultCollection   = "signatures"
	DefaultThreshold    = 75.0
	DefaultHTTPAddr     = ":8080"
	DefaultTempDir      = "temp"
	DefaultFetchTimeout = 30 * time.Second
	DefaultRedisAddr    = "redis:6379"
	DefaultPostgresDSN  = "host=postgres user=postgres password=postgres dbname=sigverify port=5432 sslmode=disable"
	DefaultCameraDevice = 0
)

// ConfigError indicates missing or malformed startup configuration. It is
// fatal: the process surfaces it and exits without retrying.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s (%s)", e.Key, e.Reason)
}

// Config carries every runtime setting for the service.
type Config struct {
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	PostgresDSN string
	RedisAddr   string

	CloudinaryURL string

	JWTSecret   string
	JWTAudience string

	HTTPAddr       string
	TempDir        string
	MatchThreshold float64
	FetchTimeout   time.Duration
	CameraDevice   int
	PreviewEnabled bool
}

// Load reads configuration from the environment, consulting a .env file
// first when one is present. The Mongo connection settings are required;
// everything else falls back to a documented default.
func Load() (*Config, error) {
	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   os.Getenv("MONGO_DB"),
		MongoCollection: getEnv("MONGO_COLLECTION", DefaultCollection),
		PostgresDSN:     getEnv("DATABASE_DSN", DefaultPostgresDSN),
		RedisAddr:       getEnv("REDIS_ADDR", DefaultRedisAddr),
		CloudinaryURL:   os.Getenv("CLOUDINARY_URL"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		HTTPAddr:        getEnv("HTTP_ADDR", DefaultHTTPAddr),
		TempDir:         getEnv("TEMP_DIR", DefaultTempDir),
		MatchThreshold:  DefaultThreshold,
		FetchTimeout:    DefaultFetchTimeout,
		CameraDevice:    DefaultCameraDevice,
		PreviewEnabled:  os.Getenv("PREVIEW_ENABLED") == "true",
	}

	if cfg.MongoURI == "" {
		return nil, &ConfigError{Key: "MONGO_URI", Reason: "connection string not set"}
	}
	if cfg.MongoDatabase == "" {
		return nil, &ConfigError{Key: "MONGO_DB", Reason: "database name not set"}
	}

	if raw := os.Getenv("MATCH_THRESHOLD"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ConfigError{Key: "MATCH_THRESHOLD", Reason: "not a number"}
		}
		if threshold < -100 || threshold > 100 {
			return nil, &ConfigError{Key: "MATCH_THRESHOLD", Reason: "outside [-100, 100]"}
		}
		cfg.MatchThreshold = threshold
	}

	if raw := os.Getenv("FETCH_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, &ConfigError{Key: "FETCH_TIMEOUT", Reason: "not a duration"}
		}
		cfg.FetchTimeout = timeout
	}

	if raw := os.Getenv("CAMERA_DEVICE"); raw != "" {
		device, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &ConfigError{Key: "CAMERA_DEVICE", Reason: "not an integer"}
		}
		cfg.CameraDevice = device
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
