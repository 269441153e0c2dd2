package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToolCall(t *testing.T) {
	text := `I'll read the file.
<tool_call>{"tool":"fs.read","args":{"path":"notes.txt","max_bytes":100}}</tool_call>`

	call, ok := ExtractToolCall(text)
	require.True(t, ok)
	assert.Equal(t, "fs.read", call.Name)
	assert.Equal(t, "notes.txt", call.Args["path"])
	assert.Equal(t, float64(100), call.Args["max_bytes"])
}

func TestExtractToolCallFirstOfMany(t *testing.T) {
	text := `<tool_call>{"tool":"fs.list","args":{}}</tool_call>
<tool_call>{"tool":"fs.read","args":{"path":"x"}}</tool_call>`

	call, ok := ExtractToolCall(text)
	require.True(t, ok)
	assert.Equal(t, "fs.list", call.Name)
}

func TestExtractToolCallTolerantWhitespace(t *testing.T) {
	call, ok := ExtractToolCall("<tool_call>\n  {\"tool\": \"web.get\", \"args\": {\"url\": \"https://example.com\"}}\n</tool_call>")
	require.True(t, ok)
	assert.Equal(t, "web.get", call.Name)
}

func TestExtractToolCallRejectsMalformed(t *testing.T) {
	cases := []string{
		"no directive here",
		"<tool_call>not json</tool_call>",
		`<tool_call>{"tool":"fs.read","args":}</tool_call>`,
		`<tool_call>{"args":{"path":"x"}}</tool_call>`,
		`<tool_call>{"tool":"","args":{}}</tool_call>`,
	}
	for _, text := range cases {
		_, ok := ExtractToolCall(text)
		assert.False(t, ok, "text %q", text)
	}
}

func TestExtractToolCallNilArgsBecomesEmptyMap(t *testing.T) {
	call, ok := ExtractToolCall(`<tool_call>{"tool":"git.status"}</tool_call>`)
	require.True(t, ok)
	assert.NotNil(t, call.Args)
	assert.Empty(t, call.Args)
}

func TestStripInternal(t *testing.T) {
	text := `Here is the plan.

<tool_call>{"tool":"fs.read","args":{"path":"a"}}</tool_call>

<tool_result>{"ok":true,"data":{}}</tool_result>

The file says hello.`

	assert.Equal(t, "Here is the plan.\n\nThe file says hello.", StripInternal(text))
}

func TestStripInternalPlainTextUntouched(t *testing.T) {
	assert.Equal(t, "just an answer", StripInternal("  just an answer  "))
}
