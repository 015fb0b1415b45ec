// Package config provides configuration management for the detection
// service: YAML file, environment variables and defaults, with env taking
// precedence over the file and the file over defaults.
package config

import "context"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Model     ModelConfig     `json:"model" yaml:"model"`
	KB        KBConfig        `json:"kb" yaml:"kb"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`

	// AllowedOrigins lists the WebSocket origins permitted to connect.
	// Empty means same-host origins only.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// DatabaseConfig locates the signal database.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// DetectionConfig carries the window compression and severity grading
// parameters.
type DetectionConfig struct {
	MaxGapSeconds     float64 `json:"max_gap_seconds" yaml:"max_gap_seconds"`
	MinPoints         int     `json:"min_points" yaml:"min_points"`
	ModerateThreshold float64 `json:"moderate_threshold" yaml:"moderate_threshold"`
	HighThreshold     float64 `json:"high_threshold" yaml:"high_threshold"`
}

// ModelConfig locates and parameterizes the anomaly model.
type ModelConfig struct {
	Path          string  `json:"path" yaml:"path"`
	NumTrees      int     `json:"num_trees" yaml:"num_trees"`
	SubSampleSize int     `json:"sub_sample_size" yaml:"sub_sample_size"`
	Contamination float64 `json:"contamination" yaml:"contamination"`
}

// KBConfig locates the knowledge base directory.
type KBConfig struct {
	Dir   string `json:"dir" yaml:"dir"`
	Watch bool   `json:"watch" yaml:"watch"`
}

// LLMConfig selects the narrative model. Provider "none" runs the
// diagnosis coordinator in local mode. The api_key is read from config or
// environment and is NEVER echoed in API responses.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // none | openai | custom
	Model    string `json:"model" yaml:"model"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
}

// LoggingConfig tunes the application and audit logs.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	AppPath    string `json:"app_path" yaml:"app_path"`
	AuditPath  string `json:"audit_path" yaml:"audit_path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// Manager loads, validates and watches the configuration.
type Manager interface {
	// Load reads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate checks the loaded configuration is usable.
	Validate(ctx context.Context) error

	// Watch emits updated configurations when the config file changes.
	Watch(ctx context.Context) <-chan Config

	// Reload re-reads configuration from sources.
	Reload(ctx context.Context) error
}

// NewManager creates a manager reading from the given YAML file. The file
// is optional; defaults and environment variables always apply.
func NewManager(configPath string) (Manager, error) {
	return &viperManager{
		configPath: configPath,
		watchChan:  make(chan Config, 1),
	}, nil
}

// NewManagerWithDefaults creates a manager with no config file.
func NewManagerWithDefaults() (Manager, error) {
	return NewManager("")
}
