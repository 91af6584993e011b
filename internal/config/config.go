// Package config loads pipeline configuration from an optional YAML file
// overlaid with environment variables. Environment always wins, so deployed
// overrides never require editing the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Qdrant vector store
	QdrantURL    string
	QdrantAPIKey string

	// Embedding
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int
	OllamaHost         string
	OpenAIAPIKey       string

	// File storage
	FilesDir string

	// Worker pool and task lifecycle
	WorkerConcurrency int
	TaskTimeLimit     time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	TaskRetention     time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors the YAML layout. All fields are optional.
type fileConfig struct {
	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
	Qdrant struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"qdrant"`
	Embedding struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		Dimension int    `yaml:"dimension"`
		Ollama    string `yaml:"ollama_host"`
	} `yaml:"embedding"`
	FilesDir string `yaml:"files_dir"`
	Worker   struct {
		Concurrency      int `yaml:"concurrency"`
		TimeLimitSeconds int `yaml:"time_limit_seconds"`
		MaxRetries       int `yaml:"max_retries"`
		BackoffSeconds   int `yaml:"backoff_seconds"`
		RetentionSeconds int `yaml:"retention_seconds"`
	} `yaml:"worker"`
	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads configuration. A YAML file named by RAGLINE_CONFIG (if set)
// supplies base values; environment variables override it; anything still
// unset falls back to defaults.
func Load() (Config, error) {
	var fc fileConfig
	if path := os.Getenv("RAGLINE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", pick(fc.SurrealDB.URL, "ws://localhost:8000/rpc")),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", pick(fc.SurrealDB.Namespace, "ragline")),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", pick(fc.SurrealDB.Database, "pipeline")),
		SurrealDBUser:      getEnv("SURREALDB_USER", pick(fc.SurrealDB.User, "root")),
		SurrealDBPass:      getEnv("SURREALDB_PASS", pick(fc.SurrealDB.Pass, "root")),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", pick(fc.SurrealDB.AuthLevel, "root")),

		QdrantURL:    getEnv("QDRANT_URL", pick(fc.Qdrant.URL, "http://localhost:6333")),
		QdrantAPIKey: getEnv("QDRANT_API_KEY", fc.Qdrant.APIKey),

		EmbeddingProvider:  getEnv("RAGLINE_EMBEDDING_PROVIDER", pick(fc.Embedding.Provider, "ollama")),
		EmbeddingModel:     getEnv("RAGLINE_EMBEDDING_MODEL", pick(fc.Embedding.Model, "all-minilm:l6-v2")),
		EmbeddingDimension: getEnvInt("RAGLINE_EMBEDDING_DIMENSION", pickInt(fc.Embedding.Dimension, 384)),
		OllamaHost:         getEnv("OLLAMA_HOST", pick(fc.Embedding.Ollama, "http://localhost:11434")),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),

		FilesDir: getEnv("RAGLINE_FILES_DIR", pick(fc.FilesDir, "./files")),

		WorkerConcurrency: getEnvInt("RAGLINE_WORKER_CONCURRENCY", pickInt(fc.Worker.Concurrency, 0)),
		TaskTimeLimit:     time.Duration(getEnvInt("RAGLINE_TASK_TIME_LIMIT", pickInt(fc.Worker.TimeLimitSeconds, 600))) * time.Second,
		MaxRetries:        getEnvInt("RAGLINE_MAX_RETRIES", pickInt(fc.Worker.MaxRetries, 3)),
		RetryBackoff:      time.Duration(getEnvInt("RAGLINE_RETRY_BACKOFF", pickInt(fc.Worker.BackoffSeconds, 60))) * time.Second,
		TaskRetention:     time.Duration(getEnvInt("RAGLINE_TASK_RETENTION", pickInt(fc.Worker.RetentionSeconds, 86400))) * time.Second,

		LogFile:  getEnv("RAGLINE_LOG_FILE", pick(fc.Log.File, "/tmp/ragline.log")),
		LogLevel: parseLogLevel(getEnv("RAGLINE_LOG_LEVEL", pick(fc.Log.Level, "INFO"))),
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func pick(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func pickInt(val, defaultVal int) int {
	if val != 0 {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
