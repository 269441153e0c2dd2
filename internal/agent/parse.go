package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Tkzito/lori-llm-local/internal/tool"
)

// toolCallRe matches the single <tool_call>{...}</tool_call> block the model
// emits when it wants to act.
var toolCallRe = regexp.MustCompile(`<tool_call>\s*(\{[\s\S]*?\})\s*</tool_call>`)

// internalBlockRe matches the markup that must never reach the user: the
// model's tool directives and the results echoed back into history.
var internalBlockRe = regexp.MustCompile(`<tool_call>[\s\S]*?</tool_call>|<tool_result>[\s\S]*?</tool_result>`)

// blankLineCollapseRe collapses 3+ consecutive newlines to a single blank line.
var blankLineCollapseRe = regexp.MustCompile(`\n{3,}`)

// ExtractToolCall returns the first tool call directive found in the model
// output. Directives with malformed JSON or a missing tool name are ignored;
// the text then reads as a plain answer.
func ExtractToolCall(text string) (tool.CallRequest, bool) {
	m := toolCallRe.FindStringSubmatch(text)
	if m == nil {
		return tool.CallRequest{}, false
	}

	var call tool.CallRequest
	if err := json.Unmarshal([]byte(m[1]), &call); err != nil {
		return tool.CallRequest{}, false
	}
	if call.Name == "" {
		return tool.CallRequest{}, false
	}
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	return call, true
}

// StripInternal removes tool_call and tool_result blocks from text so stored
// answers and archived history stay clean.
func StripInternal(text string) string {
	cleaned := internalBlockRe.ReplaceAllString(text, "\n\n")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
