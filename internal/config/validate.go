package config

import (
	"fmt"
	"path/filepath"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind: custom",
		})
	}

	// Ollama validation
	if cfg.Ollama.BaseURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "ollama.baseUrl",
			Message: "base URL is required",
		})
	}
	if cfg.Ollama.Model == "" {
		issues = append(issues, ValidationIssue{
			Path:    "ollama.model",
			Message: "model is required",
		})
	}

	// Agent validation
	if cfg.Agent.MaxToolIterations < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.maxToolIterations",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Agent.MaxToolIterations),
		})
	}
	if cfg.Agent.ToolTimeoutSecs < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.toolTimeoutSecs",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Agent.ToolTimeoutSecs),
		})
	}
	if cfg.Agent.ConfirmTimeoutSecs < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.confirmTimeoutSecs",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Agent.ConfirmTimeoutSecs),
		})
	}
	if cfg.Agent.InferenceRetries < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.inferenceRetries",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Agent.InferenceRetries),
		})
	}

	// Sandbox validation
	if cfg.Sandbox.Root != "" && !filepath.IsAbs(cfg.Sandbox.Root) {
		issues = append(issues, ValidationIssue{
			Path:    "sandbox.root",
			Message: fmt.Sprintf("must be an absolute path, got %q", cfg.Sandbox.Root),
		})
	}
	for i, d := range cfg.Sandbox.Denylist {
		if !filepath.IsAbs(d) {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("sandbox.denylist[%d]", i),
				Message: fmt.Sprintf("must be an absolute path, got %q", d),
			})
		}
	}

	// Quotes validation
	if cfg.Quotes.FreshnessMaxHours < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "quotes.freshnessMaxHours",
			Message: fmt.Sprintf("must not be negative, got %v", cfg.Quotes.FreshnessMaxHours),
		})
	}

	// Session validation
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	if cfg.Logging.ConsoleLevel != "" && !slices.Contains(validLogLevels, cfg.Logging.ConsoleLevel) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleLevel",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.ConsoleLevel),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
