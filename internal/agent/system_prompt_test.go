package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tkzito/lori-llm-local/internal/tool"
)

func TestBuildSystemPromptBasics(t *testing.T) {
	prompt := BuildSystemPrompt(PromptConfig{AgentName: "Lori"})

	assert.Contains(t, prompt, "You are Lori")
	assert.Contains(t, prompt, "Current date:")
	assert.Contains(t, prompt, "<tool_call>")
	assert.NotContains(t, prompt, "## Available Tools")
	assert.NotContains(t, prompt, "## Context Files")
}

func TestBuildSystemPromptDefaultsName(t *testing.T) {
	prompt := BuildSystemPrompt(PromptConfig{})
	assert.Contains(t, prompt, "You are Lori")
}

func TestBuildSystemPromptListsTools(t *testing.T) {
	tools := []tool.Definition{
		{
			Name:        "fs.read",
			Description: "Reads a file from the workspace.",
			Schema: tool.Schema{Params: map[string]tool.Param{
				"path":      {Type: tool.TypeString, Required: true, Description: "file to read"},
				"max_bytes": {Type: tool.TypeInt},
			}},
		},
	}
	prompt := BuildSystemPrompt(PromptConfig{Tools: tools})

	assert.Contains(t, prompt, "## Available Tools")
	assert.Contains(t, prompt, "### fs.read")
	assert.Contains(t, prompt, "- path (string, required): file to read")
	assert.Contains(t, prompt, "- max_bytes (int, optional)")

	// Params render sorted by name.
	assert.Less(t, strings.Index(prompt, "- max_bytes"), strings.Index(prompt, "- path"))
}

func TestBuildSystemPromptContextFiles(t *testing.T) {
	prompt := BuildSystemPrompt(PromptConfig{
		ContextFiles: []ContextFileContent{
			{Path: "/work/notes.txt", Content: "buy milk"},
		},
		ExtraPrompt: "Answer in Portuguese.",
	})

	assert.Contains(t, prompt, "## Context Files")
	assert.Contains(t, prompt, "--- /work/notes.txt ---\nbuy milk")
	assert.Contains(t, prompt, "Answer in Portuguese.")
}
