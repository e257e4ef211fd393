// Package config handles service configuration from environment variables
// and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the replay service.
type Config struct {
	// RecordMode selects the starting fetch mode: real network fetches
	// persisted to the archive (true) or replay from the archive (false).
	RecordMode bool

	// ArchiveFile is the archive path: written on shutdown in record mode,
	// loaded at startup in replay mode.
	ArchiveFile string

	ListenAddr string
	APIAddr    string

	// InjectScript enables deterministic-script injection before storage.
	InjectScript bool
	// UseClosestMatch serves the path-nearest archived response on a
	// replay miss instead of nothing.
	UseClosestMatch bool
	// DiffUnknownRequests adds a diff against the nearest archived request
	// to replay-miss logs.
	DiffUnknownRequests bool

	// CacheMissFile, when set, persists cache-miss telemetry on shutdown.
	CacheMissFile string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		ArchiveFile:         getEnvOrDefault("REPLAYD_ARCHIVE", "archive.json"),
		ListenAddr:          getEnvOrDefault("REPLAYD_LISTEN_ADDR", "127.0.0.1:8080"),
		APIAddr:             getEnvOrDefault("REPLAYD_API_ADDR", "127.0.0.1:8081"),
		InjectScript:        getEnvBoolOrDefault("REPLAYD_DETERMINISTIC_SCRIPT", true),
		UseClosestMatch:     getEnvBoolOrDefault("REPLAYD_USE_CLOSEST_MATCH", false),
		DiffUnknownRequests: getEnvBoolOrDefault("REPLAYD_DIFF_UNKNOWN_REQUESTS", false),
		CacheMissFile:       getEnvOrDefault("REPLAYD_CACHE_MISS_FILE", ""),
	}

	switch mode := getEnvOrDefault("REPLAYD_MODE", "replay"); mode {
	case "record":
		cfg.RecordMode = true
	case "replay":
		cfg.RecordMode = false
	default:
		return nil, fmt.Errorf("invalid REPLAYD_MODE %q: want record or replay", mode)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
