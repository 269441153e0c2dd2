// Package tool defines the closed set of tools the agent can invoke, the
// schema validation applied to every call, and the registry that dispatches
// them. Tools never reach outside the boundaries the workspace gives them.
package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// ParamType enumerates the primitive types a tool parameter may have.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeBool   ParamType = "bool"
	TypeList   ParamType = "list"
)

// Param describes a single tool parameter.
type Param struct {
	Type        ParamType
	Required    bool
	Description string
}

// Schema declares the parameters a tool accepts.
type Schema struct {
	Params map[string]Param
}

// ArgError reports arguments that fail schema validation.
type ArgError struct {
	Tool    string
	Param   string
	Message string
}

func (e *ArgError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: argument %q: %s", e.Tool, e.Param, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// Validate checks args against the schema. Missing required parameters,
// unknown parameters, and type mismatches all fail.
func (s Schema) Validate(toolName string, args map[string]any) error {
	for name, p := range s.Params {
		v, ok := args[name]
		if !ok {
			if p.Required {
				return &ArgError{Tool: toolName, Param: name, Message: "required"}
			}
			continue
		}
		if err := checkType(v, p.Type); err != nil {
			return &ArgError{Tool: toolName, Param: name, Message: err.Error()}
		}
	}
	for name := range args {
		if _, ok := s.Params[name]; !ok {
			return &ArgError{Tool: toolName, Param: name, Message: "unknown parameter"}
		}
	}
	return nil
}

func checkType(v any, t ParamType) error {
	switch t {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case TypeInt:
		switch n := v.(type) {
		case int:
		case int64:
		case float64:
			if n != math.Trunc(n) {
				return fmt.Errorf("expected integer, got %v", n)
			}
		default:
			return fmt.Errorf("expected integer, got %T", v)
		}
	case TypeFloat:
		switch v.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	case TypeList:
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("expected list, got %T", v)
		}
	default:
		return fmt.Errorf("unknown parameter type %q", t)
	}
	return nil
}

// Handler executes a tool call with already-validated arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition is a registered tool: its schema, its static sensitivity, and
// which arguments name filesystem paths.
type Definition struct {
	Name        string
	Description string
	Schema      Schema

	// Sensitive marks tools whose execution mutates state outside the
	// conversation (filesystem writes, shell execution, git mutations).
	Sensitive bool

	// PathParams lists arguments resolved as filesystem paths confined to
	// the sandbox root. ReadPathParams may also fall under the configured
	// read-only roots.
	PathParams     []string
	ReadPathParams []string

	Handler Handler
}

// ErrUnknownTool is returned when dispatching a name that was never registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds the closed tool set. Registration happens at startup;
// lookups afterwards are read-only.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

// Register adds a tool definition. Registering the same name twice panics;
// the tool set is static and a duplicate is a programming error.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		panic("tool: duplicate registration of " + def.Name)
	}
	r.tools[def.Name] = def
}

// Lookup returns the definition for a tool name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// Definitions returns all registered tools sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, d := range r.tools {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Dispatch validates args against the tool's schema and runs its handler.
// The caller bounds execution time through ctx.
func (r *Registry) Dispatch(ctx context.Context, call CallRequest) (any, error) {
	def, ok := r.Lookup(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	if err := def.Schema.Validate(call.Name, call.Args); err != nil {
		return nil, err
	}
	return def.Handler(ctx, call.Args)
}

// CallRequest is a parsed tool invocation from the model.
type CallRequest struct {
	Name string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// String renders the call compactly for logs and confirmation prompts.
func (c CallRequest) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	keys := make([]string, 0, len(c.Args))
	for k := range c.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.Args[k]))
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Helpers for handlers reading validated args.

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

func stringArgDefault(args map[string]any, name, def string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return def
}

func intArg(args map[string]any, name string, def int) int {
	switch n := args[name].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func floatArg(args map[string]any, name string, def float64) float64 {
	switch n := args[name].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

func boolArg(args map[string]any, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}
