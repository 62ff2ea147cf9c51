package domain

import "time"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cache    CacheConfig    `mapstructure:"cache"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// ModelConfig holds classifier weight file configuration. DownloadURL is
// optional; when set and the weights file is missing on startup, the model
// fetcher retrieves it before the server starts accepting requests.
type ModelConfig struct {
	Path            string        `mapstructure:"path"`
	DownloadURL     string        `mapstructure:"download_url"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	MinSizeBytes    int64         `mapstructure:"min_size_bytes"`
	Workers         int           `mapstructure:"workers"`
}

// PipelineConfig holds finding-synthesis tuning parameters.
type PipelineConfig struct {
	// ActivationThreshold binarizes the activation field for region
	// detection; values above it are candidate region pixels.
	ActivationThreshold float64 `mapstructure:"activation_threshold"`
	// MinAreaFraction drops connected components smaller than this fraction
	// of the activation field.
	MinAreaFraction float64 `mapstructure:"min_area_fraction"`
	// MaxRegions bounds the ranked region list.
	MaxRegions int `mapstructure:"max_regions"`
	// ClassifyThreshold is the operating point for the Malignant/Benign
	// result label. Risk bands are fixed and do not move with it.
	ClassifyThreshold float64 `mapstructure:"classify_threshold"`
	// TissueThreshold separates tissue from black background, in 0-255
	// intensity units.
	TissueThreshold float64 `mapstructure:"tissue_threshold"`
}

// CacheConfig holds the analyzer result cache configuration.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Size    int  `mapstructure:"size"`
}

// HistoryConfig holds the analysis-history store configuration.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
