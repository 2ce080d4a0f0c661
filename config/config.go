// Package config provides configuration for the council engine.
package config

import (
	"os"
	"strconv"
	"time"
)

// Role selects which API surface the process serves.
type Role string

const (
	// RoleMaster runs the deliberation orchestrator.
	RoleMaster Role = "master"
	// RoleWorker only exposes the generate passthrough for a master to call.
	RoleWorker Role = "worker"
)

// Config holds the engine configuration.
type Config struct {
	// Server settings
	HTTPPort int
	Role     Role

	// Inference endpoint settings
	OllamaBaseURL string
	WorkerURL     string

	// Synthesis
	SynthesizerModel string

	// Database (empty keeps sessions in memory only)
	DatabaseURL string

	// Timeouts
	ConnectTimeout  time.Duration
	GenerateTimeout time.Duration
	StageTimeout    time.Duration
	HealthTimeout   time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 8000),
		Role:             Role(getEnv("ROLE", "master")),
		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		WorkerURL:        getEnv("WORKER_URL", ""),
		SynthesizerModel: getEnv("SYNTHESIZER_MODEL", "phi3.5:mini"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ConnectTimeout:   time.Duration(getEnvInt("CONNECT_TIMEOUT_MS", 10000)) * time.Millisecond,
		GenerateTimeout:  time.Duration(getEnvInt("GENERATE_TIMEOUT_MS", 120000)) * time.Millisecond,
		StageTimeout:     time.Duration(getEnvInt("STAGE_TIMEOUT_MS", 300000)) * time.Millisecond,
		HealthTimeout:    time.Duration(getEnvInt("HEALTH_TIMEOUT_MS", 5000)) * time.Millisecond,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// InferenceBaseURL returns the endpoint stage calls are issued against. A
// master with a configured worker delegates generation to it; everything
// else talks to the local Ollama instance.
func (c *Config) InferenceBaseURL() string {
	if c.Role == RoleMaster && c.WorkerURL != "" {
		return c.WorkerURL
	}
	return c.OllamaBaseURL
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
