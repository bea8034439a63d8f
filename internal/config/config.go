// Package config loads the application configuration from the environment,
// reading a .env file first when one is present.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreFile     = "file"
)

var (
	ErrInvalidStore  = errors.New("AGENTFLOW_STORE must be memory, sqlite, postgres or file")
	ErrMissingDSN    = errors.New("DATABASE_URL is required for the postgres store")
	ErrInvalidKey    = errors.New("AGENTFLOW_ENCRYPTION_KEY must be 32 hex encoded bytes")
	ErrInvalidFormat = errors.New("AGENTFLOW_LOG_FORMAT must be json or console")
)

// Config holds all configuration of the server and the CLI.
type Config struct {
	DataDir       string
	CatalogDir    string
	Store         string
	SQLitePath    string
	FlowsDir      string
	Postgres      PostgresConfig
	Serialization SerializationConfig
	Server        ServerConfig
	Log           LogConfig
	Events        EventsConfig
}

// PostgresConfig describes the pgx pool.
type PostgresConfig struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
}

// SerializationConfig selects how flows are encoded in database stores.
type SerializationConfig struct {
	Codec         string
	Compression   string
	EncryptionKey []byte
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type EventsConfig struct {
	BufferSize int
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnvWithDefault("AGENTFLOW_DATA_DIR", defaultDataDir())
	cfg := &Config{
		DataDir:    dataDir,
		CatalogDir: getEnvWithDefault("AGENTFLOW_CATALOG_DIR", filepath.Join(dataDir, "agents")),
		Store:      getEnvWithDefault("AGENTFLOW_STORE", StoreSQLite),
		SQLitePath: getEnvWithDefault("AGENTFLOW_SQLITE_PATH", filepath.Join(dataDir, "flows.db")),
		FlowsDir:   getEnvWithDefault("AGENTFLOW_FLOWS_DIR", filepath.Join(dataDir, "flows")),
		Postgres: PostgresConfig{
			URL:               os.Getenv("DATABASE_URL"),
			MaxConns:          getEnvAsInt32("PG_MAX_CONNS", 8),
			MinConns:          getEnvAsInt32("PG_MIN_CONNS", 0),
			MaxConnIdleTime:   getEnvAsDuration("PG_MAX_CONN_IDLE", time.Minute),
			MaxConnLifetime:   getEnvAsDuration("PG_MAX_CONN_LIFETIME", time.Hour),
			HealthCheckPeriod: getEnvAsDuration("PG_HEALTHCHECK_PERIOD", 30*time.Second),
		},
		Serialization: SerializationConfig{
			Codec:       getEnvWithDefault("AGENTFLOW_CODEC", "msgpack"),
			Compression: getEnvWithDefault("AGENTFLOW_COMPRESSION", "zstd"),
		},
		Server: ServerConfig{
			Addr:            getEnvWithDefault("AGENTFLOW_HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("AGENTFLOW_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  getEnvWithDefault("AGENTFLOW_LOG_LEVEL", "info"),
			Format: getEnvWithDefault("AGENTFLOW_LOG_FORMAT", "json"),
		},
		Events: EventsConfig{
			BufferSize: getEnvAsInt("AGENTFLOW_EVENT_BUFFER", 16),
		},
	}

	if raw := os.Getenv("AGENTFLOW_ENCRYPTION_KEY"); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil || len(key) != 32 {
			return nil, ErrInvalidKey
		}
		cfg.Serialization.EncryptionKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreFile:
	case StorePostgres:
		if c.Postgres.URL == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStore, c.Store)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Log.Format)
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		return fmt.Errorf("PG_MIN_CONNS (%d) exceeds PG_MAX_CONNS (%d)", c.Postgres.MinConns, c.Postgres.MaxConns)
	}
	return nil
}

// SettingsPath is the settings file holding core settings and global configs.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "settings.json")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "agentflow")
	}
	return ".agentflow"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.ParseInt(valueStr, 10, 32); err == nil {
			return int32(value)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
