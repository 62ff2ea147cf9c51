// Package config loads application configuration from file and environment
// via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mammo-screening-server/internal/domain"
)

// Manager loads and validates the application configuration.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/mammo-screening-server/")

	viper.SetEnvPrefix("MAMMO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars suffice
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.analysis_timeout", "60s")
	viper.SetDefault("server.rate_limit", 10)
	viper.SetDefault("server.rate_burst", 20)
	viper.SetDefault("server.max_upload_bytes", 20*1024*1024)

	// Model defaults
	viper.SetDefault("model.path", "./models/classifier.weights")
	viper.SetDefault("model.download_url", "")
	viper.SetDefault("model.download_timeout", "5m")
	viper.SetDefault("model.retry_count", 3)
	viper.SetDefault("model.rate_limit", 1)
	viper.SetDefault("model.min_size_bytes", 1024)
	viper.SetDefault("model.workers", 4)

	// Pipeline defaults
	viper.SetDefault("pipeline.activation_threshold", 0.5)
	viper.SetDefault("pipeline.min_area_fraction", 0.001)
	viper.SetDefault("pipeline.max_regions", 10)
	viper.SetDefault("pipeline.classify_threshold", 0.5)
	viper.SetDefault("pipeline.tissue_threshold", 15)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.size", 32)

	// History defaults
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "./data/history.db")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetModelConfig returns classifier weight configuration.
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.config.Model
}

// GetPipelineConfig returns finding-synthesis tuning parameters.
func (m *Manager) GetPipelineConfig() *domain.PipelineConfig {
	return &m.config.Pipeline
}

// Reload reloads the configuration.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max upload size: %d", config.Server.MaxUploadBytes)
	}

	if config.Model.Path == "" {
		return fmt.Errorf("model path is required")
	}
	if config.Model.Workers <= 0 {
		return fmt.Errorf("invalid inference worker count: %d", config.Model.Workers)
	}

	if config.Pipeline.ActivationThreshold <= 0 || config.Pipeline.ActivationThreshold >= 1 {
		return fmt.Errorf("activation threshold must be in (0, 1): %f", config.Pipeline.ActivationThreshold)
	}
	if config.Pipeline.ClassifyThreshold <= 0 || config.Pipeline.ClassifyThreshold >= 1 {
		return fmt.Errorf("classify threshold must be in (0, 1): %f", config.Pipeline.ClassifyThreshold)
	}
	if config.Pipeline.MaxRegions <= 0 {
		return fmt.Errorf("max regions must be positive: %d", config.Pipeline.MaxRegions)
	}

	if config.History.Enabled && config.History.Path == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
