package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Tkzito/lori-llm-local/internal/tool"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AgentName    string
	Tools        []tool.Definition
	ContextFiles []ContextFileContent
	ExtraPrompt  string
}

// ContextFileContent is a pinned file rendered into the prompt.
type ContextFileContent struct {
	Path    string
	Content string
}

// BuildSystemPrompt constructs the system prompt for the model.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	name := cfg.AgentName
	if name == "" {
		name = "Lori"
	}
	fmt.Fprintf(&b, "You are %s, a local assistant that can act on the user's workspace through tools.\n", name)
	fmt.Fprintf(&b, "Current date: %s\n\n", time.Now().Format("2006-01-02"))

	b.WriteString("Guidelines:\n")
	b.WriteString("- Answer directly when no tool is needed.\n")
	b.WriteString("- To perform an action, your response MUST contain exactly one <tool_call> block with the call JSON, ")
	b.WriteString("for example: <tool_call>{\"tool\":\"fs.read\",\"args\":{\"path\":\"notes.txt\"}}</tool_call>\n")
	b.WriteString("- After a tool runs, its result arrives in a <tool_result> block. Use it to decide the next step or to answer.\n")
	b.WriteString("- One tool call per response. Never invent tool results.\n")

	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if len(t.Schema.Params) > 0 {
				names := make([]string, 0, len(t.Schema.Params))
				for n := range t.Schema.Params {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					p := t.Schema.Params[n]
					req := "optional"
					if p.Required {
						req = "required"
					}
					fmt.Fprintf(&b, "- %s (%s, %s)", n, p.Type, req)
					if p.Description != "" {
						fmt.Fprintf(&b, ": %s", p.Description)
					}
					b.WriteString("\n")
				}
			}
			b.WriteString("\n")
		}
	}

	if len(cfg.ContextFiles) > 0 {
		b.WriteString("\n## Context Files\n\n")
		b.WriteString("The user pinned these files into the conversation:\n\n")
		for _, f := range cfg.ContextFiles {
			fmt.Fprintf(&b, "--- %s ---\n%s\n\n", f.Path, f.Content)
		}
	}

	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}
