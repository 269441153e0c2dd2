package tool

import (
	"net/http"
	"path/filepath"
	"time"
)

// Default limits applied when a Workspace leaves them zero.
const (
	DefaultMaxReadBytes = 512 * 1024
	DefaultMaxWebChars  = 6000
	maxListItems        = 1000
	maxSearchChars      = 200_000
	maxShellOutput      = 200_000
)

// Workspace carries the boundaries and limits shared by all tool handlers.
// Path resolution here is purely lexical; access decisions belong to the
// policy evaluator, which sees every call before it is dispatched.
type Workspace struct {
	Root         string
	ShellAllow   []string
	MaxReadBytes int64
	MaxWebChars  int
	HTTPClient   *http.Client
	UserAgent    string
}

// NewWorkspace fills in defaults for zero-valued fields.
func NewWorkspace(root string, shellAllow []string) Workspace {
	return Workspace{
		Root:         root,
		ShellAllow:   shellAllow,
		MaxReadBytes: DefaultMaxReadBytes,
		MaxWebChars:  DefaultMaxWebChars,
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	}
}

// Resolve turns a tool path argument into a cleaned absolute path. Relative
// paths anchor at the workspace root.
func (w Workspace) Resolve(path string) string {
	if path == "" || path == "." {
		return filepath.Clean(w.Root)
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(w.Root, path))
}

func (w Workspace) maxReadBytes() int64 {
	if w.MaxReadBytes > 0 {
		return w.MaxReadBytes
	}
	return DefaultMaxReadBytes
}

func (w Workspace) maxWebChars() int {
	if w.MaxWebChars > 0 {
		return w.MaxWebChars
	}
	return DefaultMaxWebChars
}

func (w Workspace) httpClient() *http.Client {
	if w.HTTPClient != nil {
		return w.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// RegisterAll registers the full tool set against the given workspace.
func RegisterAll(reg *Registry, ws Workspace) {
	RegisterFS(reg, ws)
	RegisterEdit(reg, ws)
	RegisterGit(reg, ws)
	RegisterWeb(reg, ws)
	RegisterQuotes(reg, ws)
	RegisterShell(reg, ws)
}
