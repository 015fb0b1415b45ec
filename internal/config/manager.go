package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
		m.viper.SetConfigType("yaml")
	}

	m.viper.SetEnvPrefix("GRIDSIGHT")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	if m.configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			// A missing file is fine; defaults and env vars still apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			} else if os.IsNotExist(err) {
			} else {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	m.unmarshalConfig()
	m.applyEnvOverrides()
	return nil
}

// Get returns the current configuration.
func (m *viperManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		var msgs []string
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		m.unmarshalConfig()
		m.applyEnvOverrides()
		select {
		case m.watchChan <- *m.config:
		default:
			// Channel full, skip this update.
		}
	})
	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperManager) Reload(ctx context.Context) error {
	if m.configPath != "" {
		if err := m.viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}
	m.unmarshalConfig()
	m.applyEnvOverrides()
	return nil
}

// setDefaults sets default values in viper.
func (m *viperManager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("server.host", defaults.Server.Host)
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)

	m.viper.SetDefault("database.path", defaults.Database.Path)

	m.viper.SetDefault("detection.max_gap_seconds", defaults.Detection.MaxGapSeconds)
	m.viper.SetDefault("detection.min_points", defaults.Detection.MinPoints)
	m.viper.SetDefault("detection.moderate_threshold", defaults.Detection.ModerateThreshold)
	m.viper.SetDefault("detection.high_threshold", defaults.Detection.HighThreshold)

	m.viper.SetDefault("model.path", defaults.Model.Path)
	m.viper.SetDefault("model.num_trees", defaults.Model.NumTrees)
	m.viper.SetDefault("model.sub_sample_size", defaults.Model.SubSampleSize)
	m.viper.SetDefault("model.contamination", defaults.Model.Contamination)

	m.viper.SetDefault("kb.dir", defaults.KB.Dir)
	m.viper.SetDefault("kb.watch", defaults.KB.Watch)

	m.viper.SetDefault("llm.provider", defaults.LLM.Provider)
	m.viper.SetDefault("llm.model", defaults.LLM.Model)
	m.viper.SetDefault("llm.api_key", defaults.LLM.APIKey)
	m.viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.app_path", defaults.Logging.AppPath)
	m.viper.SetDefault("logging.audit_path", defaults.Logging.AuditPath)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// unmarshalConfig unmarshals viper config into the Config struct.
func (m *viperManager) unmarshalConfig() {
	cfg := &Config{}

	cfg.Server.Host = m.viper.GetString("server.host")
	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.AllowedOrigins = m.viper.GetStringSlice("server.allowed_origins")

	cfg.Database.Path = m.viper.GetString("database.path")

	cfg.Detection.MaxGapSeconds = m.viper.GetFloat64("detection.max_gap_seconds")
	cfg.Detection.MinPoints = m.viper.GetInt("detection.min_points")
	cfg.Detection.ModerateThreshold = m.viper.GetFloat64("detection.moderate_threshold")
	cfg.Detection.HighThreshold = m.viper.GetFloat64("detection.high_threshold")

	cfg.Model.Path = m.viper.GetString("model.path")
	cfg.Model.NumTrees = m.viper.GetInt("model.num_trees")
	cfg.Model.SubSampleSize = m.viper.GetInt("model.sub_sample_size")
	cfg.Model.Contamination = m.viper.GetFloat64("model.contamination")

	cfg.KB.Dir = m.viper.GetString("kb.dir")
	cfg.KB.Watch = m.viper.GetBool("kb.watch")

	cfg.LLM.Provider = m.viper.GetString("llm.provider")
	cfg.LLM.Model = m.viper.GetString("llm.model")
	cfg.LLM.APIKey = m.viper.GetString("llm.api_key")
	cfg.LLM.BaseURL = m.viper.GetString("llm.base_url")

	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.AppPath = m.viper.GetString("logging.app_path")
	cfg.Logging.AuditPath = m.viper.GetString("logging.audit_path")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")

	m.config = cfg
}

// applyEnvOverrides applies environment variable overrides for sensitive
// data that should not live in the config file.
func (m *viperManager) applyEnvOverrides() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && m.config.LLM.APIKey == "" {
		m.config.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("GRIDSIGHT_LLM_API_KEY"); apiKey != "" {
		m.config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("GRIDSIGHT_LLM_BASE_URL"); baseURL != "" {
		m.config.LLM.BaseURL = baseURL
	}
}
