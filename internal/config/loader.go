package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"koda/internal/fileutil"
)

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			// Config file is optional.
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	loadFromEnv(cfg)

	return cfg, nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "koda", "config.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "darwin" {
		appSupport := filepath.Join(homeDir, "Library", "Application Support", "koda", "config.yaml")
		if _, err := os.Stat(appSupport); err == nil {
			return appSupport
		}
		dotConfig := filepath.Join(homeDir, ".config", "koda", "config.yaml")
		if _, err := os.Stat(dotConfig); err == nil {
			return dotConfig
		}
		return appSupport
	}

	return filepath.Join(homeDir, ".config", "koda", "config.yaml")
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Allow ${VAR} references in the config file.
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func loadFromEnv(cfg *Config) {
	if apiKey := os.Getenv("KODA_API_KEY"); apiKey != "" {
		cfg.API.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.API.APIKey = apiKey
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.API.OllamaHost = host
	}

	if model := os.Getenv("KODA_MODEL"); model != "" {
		cfg.Model.Name = model
	}

	if backend := os.Getenv("KODA_BACKEND"); backend != "" {
		cfg.API.Backend = backend
	}

	if mode := os.Getenv("KODA_START_MODE"); mode != "" {
		cfg.Session.StartMode = mode
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.API.Backend {
	case "gemini":
		if c.API.APIKey == "" {
			return ErrMissingAuth
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown backend %q", c.API.Backend)
	}

	switch c.Session.StartMode {
	case "plan", "act", "bash":
	default:
		return fmt.Errorf("unknown start mode %q", c.Session.StartMode)
	}

	return nil
}

// ConfigError is a configuration validation error.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrMissingAuth ConfigError = "missing authentication: set GEMINI_API_KEY or KODA_API_KEY, or switch to the ollama backend"
)

// GetConfigPath returns the path to the config file.
func GetConfigPath() string {
	return getConfigPath()
}

// ConfigDir returns the directory holding the config file, creating it
// if needed.
func ConfigDir() (string, error) {
	path := getConfigPath()
	if path == "" {
		return "", fmt.Errorf("could not determine config path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Save saves the configuration to the config file.
func (c *Config) Save() error {
	configPath := getConfigPath()
	if configPath == "" {
		return fmt.Errorf("could not determine config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may contain an API key.
	if err := fileutil.AtomicWrite(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
