package config

import (
	"time"
)

// Config holds all koda configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Model    ModelConfig    `yaml:"model"`
	Session  SessionConfig  `yaml:"session"`
	Retry    RetryConfig    `yaml:"retry"`
	Subagent SubagentConfig `yaml:"subagent"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig configures the model provider backends.
type APIConfig struct {
	Backend    string `yaml:"backend"` // "gemini" or "ollama"
	APIKey     string `yaml:"api_key,omitempty"`
	OllamaHost string `yaml:"ollama_host,omitempty"`
}

// ModelConfig selects the model used for main and subagent sessions.
type ModelConfig struct {
	Name          string  `yaml:"name"`
	SubagentName  string  `yaml:"subagent_name,omitempty"`
	Temperature   float32 `yaml:"temperature"`
	MaxTokens     int32   `yaml:"max_tokens"`
	MaxIterations int     `yaml:"max_iterations"`
}

// SessionConfig controls session behavior.
type SessionConfig struct {
	StartMode string `yaml:"start_mode"` // "plan", "act" or "bash"
}

// RetryConfig controls provider retry behavior.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// SubagentConfig bounds the subagent coordinator.
type SubagentConfig struct {
	MaxParallel int           `yaml:"max_parallel"`
	JobTimeout  time.Duration `yaml:"job_timeout"`
}

// LoggingConfig controls the file logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Enabled bool   `yaml:"enabled"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Backend:    "gemini",
			OllamaHost: "http://localhost:11434",
		},
		Model: ModelConfig{
			Name:          "gemini-2.5-flash",
			Temperature:   0.2,
			MaxTokens:     8192,
			MaxIterations: 25,
		},
		Session: SessionConfig{
			StartMode: "plan",
		},
		Retry: RetryConfig{
			MaxRetries:  3,
			RetryDelay:  time.Second,
			HTTPTimeout: 120 * time.Second,
		},
		Subagent: SubagentConfig{
			MaxParallel: 4,
			JobTimeout:  2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Enabled: true,
		},
	}
}
