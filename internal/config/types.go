package config

// Config is the root configuration for Lori.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	Ollama  OllamaConfig  `yaml:"ollama,omitempty"`
	Agent   AgentConfig   `yaml:"agent,omitempty"`
	Sandbox SandboxConfig `yaml:"sandbox,omitempty"`
	Quotes  QuotesConfig  `yaml:"quotes,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
	UploadsDir     string      `yaml:"uploadsDir,omitempty"`
}

// GatewayAuth configures gateway authentication. An empty token means
// the gateway accepts unauthenticated connections (loopback use).
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// OllamaConfig points at the local inference backend.
type OllamaConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// AgentConfig defines orchestration limits for a single turn.
type AgentConfig struct {
	Name               string   `yaml:"name,omitempty"`
	MaxToolIterations  int      `yaml:"maxToolIterations,omitempty"` // tool-call budget per turn
	ToolTimeoutSecs    int      `yaml:"toolTimeoutSecs,omitempty"`
	ConfirmTimeoutSecs int      `yaml:"confirmTimeoutSecs,omitempty"`
	InferenceRetries   int      `yaml:"inferenceRetries,omitempty"`
	Temperature        *float64 `yaml:"temperature,omitempty"`
}

// SandboxConfig defines the filesystem and shell boundaries tools run under.
type SandboxConfig struct {
	Root         string   `yaml:"root,omitempty"`
	Denylist     []string `yaml:"denylist,omitempty"`     // path prefixes tools must never touch
	ReadOnlyDirs []string `yaml:"readOnlyDirs,omitempty"` // extra roots readable outside the sandbox
	ShellAllow   []string `yaml:"shellAllow,omitempty"`   // executables shell.exec may run
}

// QuotesConfig tunes the market-quote shortcut layer.
type QuotesConfig struct {
	FreshnessMaxHours float64 `yaml:"freshnessMaxHours,omitempty"`
}

// SessionConfig defines conversation persistence behavior.
type SessionConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
