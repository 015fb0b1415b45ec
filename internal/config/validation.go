package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}

	if c.Database.Path == "" {
		errs = append(errs, &ValidationError{
			Field:   "database.path",
			Message: "database path is required",
		})
	}

	if c.Detection.MaxGapSeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "detection.max_gap_seconds",
			Message: fmt.Sprintf("max_gap_seconds must be >= 0, got %v", c.Detection.MaxGapSeconds),
		})
	}
	if c.Detection.MinPoints < 1 {
		errs = append(errs, &ValidationError{
			Field:   "detection.min_points",
			Message: fmt.Sprintf("min_points must be >= 1, got %d", c.Detection.MinPoints),
		})
	}
	if c.Detection.ModerateThreshold < 0 || c.Detection.HighThreshold <= c.Detection.ModerateThreshold {
		errs = append(errs, &ValidationError{
			Field:   "detection.high_threshold",
			Message: fmt.Sprintf("severity thresholds must satisfy 0 <= moderate < high, got moderate=%v high=%v",
				c.Detection.ModerateThreshold, c.Detection.HighThreshold),
		})
	}

	if c.Model.Path == "" {
		errs = append(errs, &ValidationError{
			Field:   "model.path",
			Message: "model path is required",
		})
	}
	if c.Model.NumTrees < 1 {
		errs = append(errs, &ValidationError{
			Field:   "model.num_trees",
			Message: fmt.Sprintf("num_trees must be >= 1, got %d", c.Model.NumTrees),
		})
	}
	if c.Model.Contamination <= 0 || c.Model.Contamination >= 0.5 {
		errs = append(errs, &ValidationError{
			Field:   "model.contamination",
			Message: fmt.Sprintf("contamination must be in (0, 0.5), got %v", c.Model.Contamination),
		})
	}

	switch c.LLM.Provider {
	case "none":
	case "openai":
		if c.LLM.APIKey == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.api_key",
				Message: "API key is required for provider 'openai' (set GRIDSIGHT_LLM_API_KEY or OPENAI_API_KEY)",
			})
		}
		if c.LLM.Model == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.model",
				Message: "model is required for provider 'openai'",
			})
		}
	case "custom":
		if c.LLM.BaseURL == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.base_url",
				Message: "base_url is required for provider 'custom'",
			})
		}
		if c.LLM.Model == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.model",
				Message: "model is required for provider 'custom'",
			})
		}
	default:
		errs = append(errs, &ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: none, openai, custom", c.LLM.Provider),
		})
	}

	if lvl := strings.ToLower(c.Logging.Level); lvl != "debug" && lvl != "info" && lvl != "warn" && lvl != "error" {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	return errs
}
