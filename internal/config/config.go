package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 8000,
			Bind: "loopback",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen3:8b",
		},
		Agent: AgentConfig{
			Name:               "Lori",
			MaxToolIterations:  6,
			ToolTimeoutSecs:    60,
			ConfirmTimeoutSecs: 120,
			InferenceRetries:   2,
		},
		Sandbox: SandboxConfig{
			Denylist:   []string{"/proc", "/sys", "/dev", "/run", "/boot"},
			ShellAllow: []string{"ls", "cat", "grep", "find", "head", "tail", "wc", "date", "uname", "pwd"},
		},
		Quotes: QuotesConfig{
			FreshnessMaxHours: 1,
		},
		Session: SessionConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleLevel: "info",
			ConsoleStyle: "pretty",
		},
	}
}
