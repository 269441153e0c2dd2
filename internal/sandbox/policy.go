// Package sandbox decides what a tool call may do before it runs. The
// evaluator is pure: the same call against the same policy always yields the
// same decision, and nothing here touches the filesystem or network.
package sandbox

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Tkzito/lori-llm-local/internal/tool"
)

// Verdict is the outcome of evaluating a tool call.
type Verdict string

const (
	VerdictAllow   Verdict = "allow"
	VerdictDeny    Verdict = "deny"
	VerdictConfirm Verdict = "requires_confirmation"
)

// Decision is a verdict plus the human-readable reason behind it.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason,omitempty"`
}

func allow() Decision                { return Decision{Verdict: VerdictAllow} }
func deny(reason string) Decision    { return Decision{Verdict: VerdictDeny, Reason: reason} }
func confirm(reason string) Decision { return Decision{Verdict: VerdictConfirm, Reason: reason} }

// Policy is the sandbox configuration the evaluator enforces.
type Policy struct {
	Root         string   // all tool paths resolve under this directory
	Denylist     []string // path prefixes that are never touchable
	ReadOnlyDirs []string // extra roots readable outside Root
	ShellAllow   []string // executables shell.exec may run
}

// Evaluator applies a Policy to tool calls using the registry's static
// metadata (sensitivity, path parameters).
type Evaluator struct {
	policy Policy
	tools  *tool.Registry
}

// NewEvaluator creates an evaluator for the given policy and tool set.
func NewEvaluator(policy Policy, tools *tool.Registry) *Evaluator {
	policy.Root = filepath.Clean(policy.Root)
	return &Evaluator{policy: policy, tools: tools}
}

// Evaluate decides whether a tool call is allowed, denied, or needs human
// confirmation. Order matters: unknown tools and path violations deny before
// sensitivity is considered.
func (e *Evaluator) Evaluate(call tool.CallRequest) Decision {
	def, ok := e.tools.Lookup(call.Name)
	if !ok {
		return deny(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	for _, param := range def.PathParams {
		if d, bad := e.checkPath(call, param, false); bad {
			return d
		}
	}
	for _, param := range def.ReadPathParams {
		if d, bad := e.checkPath(call, param, true); bad {
			return d
		}
	}

	if call.Name == "shell.exec" {
		if d, bad := e.checkShell(call); bad {
			return d
		}
	}

	if def.Sensitive {
		return confirm(fmt.Sprintf("%s modifies state outside the conversation", call.String()))
	}
	return allow()
}

// CheckRead decides whether a path may be read outside a tool call. Context
// file pinning runs through this before file contents enter a prompt.
func (e *Evaluator) CheckRead(path string) Decision {
	if d, bad := e.pathDecision(path, true); bad {
		return d
	}
	return allow()
}

// checkPath resolves the named argument the same way the workspace will and
// rejects escapes and denylisted prefixes. Absent optional arguments pass.
func (e *Evaluator) checkPath(call tool.CallRequest, param string, readOnly bool) (Decision, bool) {
	raw, ok := call.Args[param].(string)
	if !ok || raw == "" {
		return Decision{}, false
	}
	return e.pathDecision(raw, readOnly)
}

func (e *Evaluator) pathDecision(raw string, readOnly bool) (Decision, bool) {
	p := raw
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.policy.Root, p)
	}
	p = filepath.Clean(p)

	for _, d := range e.policy.Denylist {
		if isUnder(p, d) {
			return deny(fmt.Sprintf("path %s is denylisted", raw)), true
		}
	}

	if isUnder(p, e.policy.Root) {
		return Decision{}, false
	}
	if readOnly {
		for _, base := range e.policy.ReadOnlyDirs {
			if isUnder(p, base) {
				return Decision{}, false
			}
		}
	}
	return deny(fmt.Sprintf("path %s escapes the sandbox root", raw)), true
}

func (e *Evaluator) checkShell(call tool.CallRequest) (Decision, bool) {
	raw, _ := call.Args["cmd"].([]any)
	if len(raw) == 0 {
		return Decision{}, false // schema validation reports the empty list
	}
	first := fmt.Sprint(raw[0])
	if slices.Contains(e.policy.ShellAllow, "*") || slices.Contains(e.policy.ShellAllow, first) {
		return Decision{}, false
	}
	return deny(fmt.Sprintf("command %s is not on the shell allowlist", first)), true
}

// isUnder reports whether p is base or inside it. Both must be cleaned
// absolute paths; the comparison is lexical.
func isUnder(p, base string) bool {
	base = filepath.Clean(base)
	if p == base {
		return true
	}
	return strings.HasPrefix(p, base+string(filepath.Separator))
}
