package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Tkzito/lori-llm-local/internal/agent"
	"github.com/Tkzito/lori-llm-local/internal/config"
	"github.com/Tkzito/lori-llm-local/internal/llm"
	"github.com/Tkzito/lori-llm-local/internal/sandbox"
	"github.com/Tkzito/lori-llm-local/internal/store"
	"github.com/Tkzito/lori-llm-local/internal/tool"
)

// app holds the wired components shared by the serve and chat commands.
type app struct {
	cfg     config.Config
	runner  *agent.Runner
	archive store.Archive
	tools   *tool.Registry
	db      *store.DB
}

// Close releases resources held by the app.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// loadConfig loads and validates the effective configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return config.Config{}, err
	}

	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return config.Config{}, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// buildApp wires the runner, tools, and archive from config.
func buildApp(cfg config.Config) (*app, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("preparing state directories: %w", err)
	}
	if cfg.Sandbox.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.Sandbox.Root = wd
	}
	if cfg.Gateway.UploadsDir == "" {
		cfg.Gateway.UploadsDir = paths.Uploads
	}

	a := &app{cfg: cfg}

	if cfg.Session.Store == "sqlite" {
		dbPath := filepath.Join(paths.Data, "lori.db")
		db, err := store.Open(dbPath, log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
		a.archive = store.NewSQLiteArchive(db)
		log.Info().Str("path", dbPath).Msg("using SQLite conversation archive")
	} else {
		a.archive = store.NewMemoryArchive()
		log.Info().Msg("using in-memory conversation archive")
	}

	ws := tool.NewWorkspace(cfg.Sandbox.Root, cfg.Sandbox.ShellAllow)
	a.tools = tool.NewRegistry()
	tool.RegisterAll(a.tools, ws)

	evaluator := sandbox.NewEvaluator(sandbox.Policy{
		Root:         cfg.Sandbox.Root,
		Denylist:     cfg.Sandbox.Denylist,
		ReadOnlyDirs: cfg.Sandbox.ReadOnlyDirs,
		ShellAllow:   cfg.Sandbox.ShellAllow,
	}, a.tools)

	registry := llm.NewRegistryFromConfig(cfg.Ollama, log)
	client, err := registry.Resolve(cfg.Ollama.Model)
	if err != nil {
		return nil, fmt.Errorf("resolving model backend: %w", err)
	}
	client = llm.NewRetryClient(client, cfg.Agent.InferenceRetries, 0, log)

	heur := agent.NewHeuristics(a.tools, cfg.Quotes.FreshnessMaxHours, log)

	a.runner = agent.NewRunner(
		agent.RunnerConfig{
			AgentName:         cfg.Agent.Name,
			Model:             cfg.Ollama.Model,
			MaxToolIterations: cfg.Agent.MaxToolIterations,
			ToolTimeout:       time.Duration(cfg.Agent.ToolTimeoutSecs) * time.Second,
			ConfirmTimeout:    time.Duration(cfg.Agent.ConfirmTimeoutSecs) * time.Second,
			Temperature:       cfg.Agent.Temperature,
		},
		client,
		agent.NewMemorySessionStore(),
		a.tools,
		evaluator,
		heur,
		ws,
		a.archive,
		log,
	)

	log.Info().
		Str("model", cfg.Ollama.Model).
		Str("sandboxRoot", cfg.Sandbox.Root).
		Int("tools", len(a.tools.Definitions())).
		Msg("agent ready")

	return a, nil
}
