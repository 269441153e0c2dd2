package llm

import (
	"fmt"
	"sync"

	"github.com/Tkzito/lori-llm-local/internal/config"
	"github.com/Tkzito/lori-llm-local/internal/logging"
)

// ProviderError is returned when an inference backend fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code when the backend responded (429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages inference backends and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // backend name → client
	aliases  map[string]string // model alias → backend name
	fallback string            // default backend name
	log      *logging.Logger
}

// NewRegistry creates an empty backend registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given backend name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("backend", name).Msg("registered inference backend")
}

// Alias maps a model name to a backend.
func (r *Registry) Alias(model, backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = backend
}

// SetFallback sets the default backend used when no model match is found.
func (r *Registry) SetFallback(backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = backend
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact backend name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	if backend, ok := r.aliases[model]; ok {
		if c, ok := r.clients[backend]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no inference backend for model %q", model)
}

// List returns all registered backend names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

// NewRegistryFromConfig builds a Registry with the configured Ollama backend
// registered under both its backend name and its model name.
func NewRegistryFromConfig(cfg config.OllamaConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	client := NewOllamaClient(cfg.BaseURL, cfg.Model)
	reg.Register("ollama", client)
	reg.SetFallback("ollama")
	if cfg.Model != "" {
		reg.Alias(cfg.Model, "ollama")
	}

	return reg
}
