// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	HTTPPort string
	LogLevel string // debug, info, warn, error
	LogFile  string // empty for stdout only
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host string
	Port string
}

// GameConfig tunes the round loop and room lifecycle.
type GameConfig struct {
	// RepoType selects the pending-bet store: memory or redis.
	RepoType string
	// PersistHistory enables the Postgres history (bet orders and round
	// records). Off, the game runs fully in memory.
	PersistHistory bool

	BettingDuration time.Duration
	ShakingDuration time.Duration
	ResultDuration  time.Duration

	// EmptyGrace is how long a room may sit with nobody online before it
	// is finished.
	EmptyGrace time.Duration
	// Retention is how long finished rooms are kept before deletion.
	Retention time.Duration
}

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Game     GameConfig
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: getEnv("HTTP_PORT", "8080"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "baucua_user"),
			Password:     getEnv("DB_PASSWORD", "baucua_pass"),
			Name:         getEnv("DB_NAME", "baucua_db"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host: getEnv("REDIS_HOST", "localhost"),
			Port: getEnv("REDIS_PORT", "6379"),
		},
		Game: GameConfig{
			RepoType:        getEnv("BET_REPO_TYPE", "memory"),
			PersistHistory:  getEnvBool("PERSIST_HISTORY", false),
			BettingDuration: getEnvDuration("BETTING_DURATION", 20*time.Second),
			ShakingDuration: getEnvDuration("SHAKING_DURATION", 3*time.Second),
			ResultDuration:  getEnvDuration("RESULT_DURATION", 5*time.Second),
			EmptyGrace:      getEnvDuration("EMPTY_GRACE", time.Minute),
			Retention:       getEnvDuration("ROOM_RETENTION", 24*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
