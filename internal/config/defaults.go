package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.AllowedOrigins = nil

	// Database defaults
	cfg.Database.Path = "data/signals.db"

	// Detection defaults
	cfg.Detection.MaxGapSeconds = 10
	cfg.Detection.MinPoints = 5
	cfg.Detection.ModerateThreshold = 0.05
	cfg.Detection.HighThreshold = 0.15

	// Model defaults
	cfg.Model.Path = "artifacts/models/baseline_iforest.json"
	cfg.Model.NumTrees = 200
	cfg.Model.SubSampleSize = 256
	cfg.Model.Contamination = 0.02

	// Knowledge base defaults
	cfg.KB.Dir = "data/sop"
	cfg.KB.Watch = true

	// LLM defaults: local narratives unless a provider is configured.
	cfg.LLM.Provider = "none"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.APIKey = ""
	cfg.LLM.BaseURL = ""

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.AppPath = "logs/gridsight.log"
	cfg.Logging.AuditPath = "logs/gridsight-audit.log"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true

	return cfg
}
