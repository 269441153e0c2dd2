package agent

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tkzito/lori-llm-local/internal/domain"
	"github.com/Tkzito/lori-llm-local/internal/llm"
	"github.com/Tkzito/lori-llm-local/internal/logging"
	"github.com/Tkzito/lori-llm-local/internal/sandbox"
	"github.com/Tkzito/lori-llm-local/internal/tool"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

// scriptedClient plays back one stream per model call.
type scriptedClient struct {
	calls   atomic.Int32
	scripts [][]llm.StreamEvent
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, errors.New("scripted client is stream-only")
}

func (c *scriptedClient) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	n := int(c.calls.Add(1)) - 1
	if n >= len(c.scripts) {
		return nil, errors.New("scripted client exhausted")
	}
	return llm.StreamOf(c.scripts[n]...), nil
}

func answerStream(text string) []llm.StreamEvent {
	return []llm.StreamEvent{
		{Type: llm.EventDelta, Content: text},
		{Type: llm.EventDone, Response: &llm.CompletionResponse{Content: text}},
	}
}

type runnerFixture struct {
	runner  *Runner
	client  *scriptedClient
	tools   *tool.Registry
	root    string
	noteRan *atomic.Int32
	wipeRan *atomic.Int32
}

// newRunnerFixture wires a runner over a scripted model, a temp workspace
// root, and two probe tools: note.fetch is read-only, wipe.run is sensitive.
func newRunnerFixture(t *testing.T, scripts ...[]llm.StreamEvent) *runnerFixture {
	t.Helper()
	root := t.TempDir()

	fx := &runnerFixture{
		client:  &scriptedClient{scripts: scripts},
		tools:   tool.NewRegistry(),
		root:    root,
		noteRan: &atomic.Int32{},
		wipeRan: &atomic.Int32{},
	}

	fx.tools.Register(tool.Definition{
		Name:        "note.fetch",
		Description: "Fetches a note.",
		Schema: tool.Schema{Params: map[string]tool.Param{
			"id": {Type: tool.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			fx.noteRan.Add(1)
			return map[string]any{"note": "remember the milk"}, nil
		},
	})
	fx.tools.Register(tool.Definition{
		Name:        "wipe.run",
		Description: "Destroys things.",
		Sensitive:   true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			fx.wipeRan.Add(1)
			return map[string]any{"wiped": true}, nil
		},
	})
	fx.tools.Register(tool.Definition{
		Name:        "disk.stat",
		Description: "Stats a path.",
		Schema: tool.Schema{Params: map[string]tool.Param{
			"path": {Type: tool.TypeString, Required: true},
		}},
		ReadPathParams: []string{"path"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"exists": true}, nil
		},
	})
	fx.tools.Register(tool.Definition{
		Name:        "slow.op",
		Description: "Takes its time.",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return map[string]any{}, nil
			}
		},
	})

	policy := sandbox.Policy{
		Root:     root,
		Denylist: []string{"/proc", "/sys", "/dev", "/run", "/boot"},
	}

	fx.runner = NewRunner(
		RunnerConfig{
			AgentName:         "Lori",
			Model:             "test-model",
			MaxToolIterations: 4,
			ToolTimeout:       200 * time.Millisecond,
			ConfirmTimeout:    time.Second,
		},
		fx.client,
		NewMemorySessionStore(),
		fx.tools,
		sandbox.NewEvaluator(policy, fx.tools),
		nil,
		tool.NewWorkspace(root, nil),
		nil,
		testLogger(),
	)
	return fx
}

func collectEvents(t *testing.T, fx *runnerFixture, turn TurnRequest, onEvent func(*Session, Event)) ([]Event, error) {
	t.Helper()
	s := fx.runner.NewSession()
	var events []Event
	err := fx.runner.RunTurn(context.Background(), s, turn, func(e Event) {
		events = append(events, e)
		if onEvent != nil {
			onEvent(s, e)
		}
	})
	return events, err
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func contentOf(events []Event) string {
	var b strings.Builder
	for _, e := range events {
		if e.Type == EventContent {
			b.WriteString(e.Content)
		}
	}
	return b.String()
}

func TestRunTurnPlainAnswer(t *testing.T) {
	fx := newRunnerFixture(t, []llm.StreamEvent{
		{Type: llm.EventThought, Content: "the user greeted me"},
		{Type: llm.EventDelta, Content: "Hello"},
		{Type: llm.EventDelta, Content: ", there!"},
		{Type: llm.EventDone, Response: &llm.CompletionResponse{Content: "Hello, there!"}},
	})

	s := fx.runner.NewSession()
	var events []Event
	err := fx.runner.RunTurn(context.Background(), s, TurnRequest{Message: "hi"}, func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventThought, EventContent, EventContent, EventDone}, eventTypes(events))
	assert.Equal(t, "Hello, there!", contentOf(events))

	hist := fx.runner.Sessions().History(s.ID())
	require.Len(t, hist, 2)
	assert.Equal(t, llm.RoleUser, hist[0].Role)
	assert.Equal(t, "hi", hist[0].Content)
	assert.Equal(t, llm.RoleAssistant, hist[1].Role)
	assert.Equal(t, "Hello, there!", hist[1].Content)
}

func TestRunTurnToolCallThenAnswer(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`Checking. <tool_call>{"tool":"note.fetch","args":{"id":"1"}}</tool_call>`),
		answerStream("Your note says: remember the milk."),
	)

	events, err := collectEvents(t, fx, TurnRequest{Message: "what's my note?"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fx.noteRan.Load())

	types := eventTypes(events)
	assert.Equal(t, []EventType{EventContent, EventToolCall, EventToolResult, EventContent, EventDone}, types)

	callData, ok := events[1].Data.(ToolCallData)
	require.True(t, ok)
	assert.Equal(t, "note.fetch", callData.Name)

	resData, ok := events[2].Data.(ToolResultData)
	require.True(t, ok)
	assert.True(t, resData.OK)
}

func TestRunTurnToolResultFedBackToModel(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`<tool_call>{"tool":"note.fetch","args":{"id":"1"}}</tool_call>`),
		answerStream("done"),
	)

	s := fx.runner.NewSession()
	err := fx.runner.RunTurn(context.Background(), s, TurnRequest{Message: "go"}, func(Event) {})
	require.NoError(t, err)

	hist := fx.runner.Sessions().History(s.ID())
	require.Len(t, hist, 4)
	assert.Equal(t, llm.RoleTool, hist[2].Role)
	assert.Contains(t, hist[2].Content, "<tool_result>")
	assert.Contains(t, hist[2].Content, `"ok":true`)
	assert.Contains(t, hist[2].Content, "remember the milk")
}

func TestRunTurnStreamWithholdsDirective(t *testing.T) {
	fx := newRunnerFixture(t,
		[]llm.StreamEvent{
			{Type: llm.EventDelta, Content: "Let me look. <tool"},
			{Type: llm.EventDelta, Content: `_call>{"tool":"note.fetch",`},
			{Type: llm.EventDelta, Content: `"args":{"id":"1"}}</tool_call>`},
			{Type: llm.EventDone},
		},
		answerStream("found it"),
	)

	events, err := collectEvents(t, fx, TurnRequest{Message: "go"}, nil)
	require.NoError(t, err)

	for _, e := range events {
		if e.Type == EventContent {
			assert.NotContains(t, e.Content, "tool_call")
			assert.NotContains(t, e.Content, "note.fetch")
		}
	}
	assert.Equal(t, "Let me look. found it", contentOf(events))
}

func TestRunTurnSandboxDenyNeverDispatches(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`<tool_call>{"tool":"disk.stat","args":{"path":"/etc/passwd"}}</tool_call>`),
		answerStream("I can't touch that file."),
	)

	events, err := collectEvents(t, fx, TurnRequest{Message: "read /etc/passwd"}, nil)
	require.NoError(t, err)

	var denied bool
	for _, e := range events {
		if e.Type == EventError {
			data := e.Data.(ErrorData)
			assert.Equal(t, KindSandboxDenied, data.Kind)
			denied = true
		}
		assert.NotEqual(t, EventToolResult, e.Type)
	}
	assert.True(t, denied)
	assert.Equal(t, "I can't touch that file.", contentOf(events))
}

func TestRunTurnUnknownToolDenied(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`<tool_call>{"tool":"magic.wand","args":{}}</tool_call>`),
		answerStream("no such power"),
	)

	s := fx.runner.NewSession()
	var errs []ErrorData
	err := fx.runner.RunTurn(context.Background(), s, TurnRequest{Message: "go"}, func(e Event) {
		if e.Type == EventError {
			errs = append(errs, e.Data.(ErrorData))
		}
	})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, KindSandboxDenied, errs[0].Kind)

	// The failure went back to the model as a result.
	hist := fx.runner.Sessions().History(s.ID())
	assert.Contains(t, hist[2].Content, `"ok":false`)
	assert.Contains(t, hist[2].Content, string(KindSandboxDenied))
}

func TestRunTurnConfirmationApproved(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`<tool_call>{"tool":"wipe.run","args":{}}</tool_call>`),
		answerStream("wiped clean"),
	)

	events, err := collectEvents(t, fx, TurnRequest{Message: "wipe it"}, func(s *Session, e Event) {
		if e.Type == EventConfirmRequired {
			require.True(t, s.ResolveConfirmation(true))
		}
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fx.wipeRan.Load())

	types := eventTypes(events)
	assert.Equal(t, []EventType{EventToolCall, EventConfirmRequired, EventToolResult, EventContent, EventDone}, types)

	confirm := events[1].Data.(ConfirmRequiredData)
	assert.Equal(t, "wipe.run", confirm.Action)
	assert.NotEmpty(t, confirm.ID)
	assert.NotEmpty(t, confirm.Reason)
}

func TestRunTurnConfirmationDenied(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`<tool_call>{"tool":"wipe.run","args":{}}</tool_call>`),
		answerStream("ok, not touching it"),
	)

	events, err := collectEvents(t, fx, TurnRequest{Message: "wipe it"}, func(s *Session, e Event) {
		if e.Type == EventConfirmRequired {
			s.ResolveConfirmation(false)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), fx.wipeRan.Load(), "denied tool must never run")

	var kinds []ErrorKind
	for _, e := range events {
		if e.Type == EventError {
			kinds = append(kinds, e.Data.(ErrorData).Kind)
		}
	}
	assert.Equal(t, []ErrorKind{KindConfirmationDenied}, kinds)
	assert.Equal(t, "ok, not touching it", contentOf(events))
}

func TestRunTurnConfirmationTimeout(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`<tool_call>{"tool":"wipe.run","args":{}}</tool_call>`),
		answerStream("nobody answered, leaving it alone"),
	)
	fx.runner.cfg.ConfirmTimeout = 30 * time.Millisecond

	events, err := collectEvents(t, fx, TurnRequest{Message: "wipe it"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), fx.wipeRan.Load())

	var kinds []ErrorKind
	for _, e := range events {
		if e.Type == EventError {
			kinds = append(kinds, e.Data.(ErrorData).Kind)
		}
	}
	assert.Equal(t, []ErrorKind{KindConfirmationTimeout}, kinds)
}

func TestRunTurnInvalidArguments(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`<tool_call>{"tool":"note.fetch","args":{}}</tool_call>`),
		answerStream("I need an id"),
	)

	events, err := collectEvents(t, fx, TurnRequest{Message: "go"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), fx.noteRan.Load())

	var kinds []ErrorKind
	for _, e := range events {
		if e.Type == EventError {
			kinds = append(kinds, e.Data.(ErrorData).Kind)
		}
	}
	assert.Equal(t, []ErrorKind{KindInvalidArguments}, kinds)
}

func TestRunTurnToolTimeout(t *testing.T) {
	fx := newRunnerFixture(t,
		answerStream(`<tool_call>{"tool":"slow.op","args":{}}</tool_call>`),
		answerStream("that took too long"),
	)

	events, err := collectEvents(t, fx, TurnRequest{Message: "go"}, nil)
	require.NoError(t, err)

	var kinds []ErrorKind
	for _, e := range events {
		if e.Type == EventError {
			kinds = append(kinds, e.Data.(ErrorData).Kind)
		}
	}
	assert.Equal(t, []ErrorKind{KindToolTimeout}, kinds)
}

func TestRunTurnBudgetExceeded(t *testing.T) {
	loop := answerStream(`<tool_call>{"tool":"note.fetch","args":{"id":"1"}}</tool_call>`)
	fx := newRunnerFixture(t, loop, loop, loop, loop, loop)

	events, err := collectEvents(t, fx, TurnRequest{Message: "go"}, nil)

	var te *TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindTurnBudgetExceeded, te.Kind)
	assert.Equal(t, int32(4), fx.noteRan.Load(), "one dispatch per iteration up to the budget")

	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Type)
	errData := events[len(events)-2].Data.(ErrorData)
	assert.Equal(t, KindTurnBudgetExceeded, errData.Kind)
}

func TestRunTurnInferenceUnavailable(t *testing.T) {
	fx := newRunnerFixture(t) // no scripts, Stream errors immediately

	events, err := collectEvents(t, fx, TurnRequest{Message: "hi"}, nil)

	var te *TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInferenceUnavailable, te.Kind)

	types := eventTypes(events)
	require.Len(t, types, 2)
	assert.Equal(t, EventError, types[0])
	assert.Equal(t, EventDone, types[1])
}

func TestRunTurnRejectsConcurrentTurn(t *testing.T) {
	fx := newRunnerFixture(t, answerStream("hi"))

	s := fx.runner.NewSession()
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	err := fx.runner.RunTurn(context.Background(), s, TurnRequest{Message: "hi"}, func(Event) {})
	assert.ErrorIs(t, err, ErrTurnActive)
}

func TestRunTurnHistoryReset(t *testing.T) {
	fx := newRunnerFixture(t, answerStream("continuing"))

	s := fx.runner.NewSession()
	prior := []domain.Message{
		domain.NewMessage(domain.RoleUser, "earlier question"),
		domain.NewMessage(domain.RoleAssistant, "earlier answer"),
	}
	err := fx.runner.RunTurn(context.Background(), s, TurnRequest{Message: "and now?", History: prior}, func(Event) {})
	require.NoError(t, err)

	hist := fx.runner.Sessions().History(s.ID())
	require.Len(t, hist, 4)
	assert.Equal(t, "earlier question", hist[0].Content)
	assert.Equal(t, "and now?", hist[2].Content)
}

func TestRunTurnContextFilesReachPrompt(t *testing.T) {
	fx := newRunnerFixture(t, answerStream("noted"))

	path := filepath.Join(fx.root, "pinned.txt")
	require.NoError(t, os.WriteFile(path, []byte("pinned content here"), 0o644))

	var seenSystem string
	fx.client.scripts = nil
	fx.runner.client = &llm.MockClient{
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			seenSystem = req.System
			return llm.StreamText("noted"), nil
		},
	}

	s := fx.runner.NewSession()
	err := fx.runner.RunTurn(context.Background(), s, TurnRequest{
		Message:      "summarize",
		ContextFiles: []string{"pinned.txt"},
	}, func(Event) {})
	require.NoError(t, err)

	assert.Contains(t, seenSystem, "pinned content here")
	assert.Contains(t, seenSystem, "## Context Files")

	snap := fx.runner.Sessions().Snapshot(s.ID())
	require.NotNil(t, snap)
	require.Len(t, snap.ContextFiles, 1)
	assert.Equal(t, path, snap.ContextFiles[0].Path)
}

func TestRunTurnHeuristicShortcutSkipsModel(t *testing.T) {
	fx := newRunnerFixture(t) // model would fail if consulted

	fx.tools.Register(tool.Definition{
		Name:        "crypto.price",
		Description: "Quotes a crypto asset.",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return tool.CryptoPriceResult{
				Asset:            "btc",
				AssetID:          "bitcoin",
				Prices:           map[string]float64{"usd": 60000},
				VsCurrencies:     []string{"usd"},
				LastUpdatedISO:   "2026-08-30T10:00:00Z",
				LastUpdatedHours: 0.1,
				Source:           "test",
			}, nil
		},
	})
	fx.runner.heur = NewHeuristics(fx.tools, 1, testLogger())

	events, err := collectEvents(t, fx, TurnRequest{Message: "what is the btc price?"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), fx.client.calls.Load(), "shortcut must not call the model")

	assert.Equal(t, []EventType{EventContent, EventDone}, eventTypes(events))
	assert.Contains(t, contentOf(events), "BTC")
	assert.Contains(t, contentOf(events), "60000.00")
}

func TestRunTurnCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fx := newRunnerFixture(t)
	fx.runner.client = &llm.MockClient{
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			cancel()
			return nil, ctx.Err()
		},
	}

	s := fx.runner.NewSession()
	err := fx.runner.RunTurn(ctx, s, TurnRequest{Message: "hi"}, func(Event) {})
	assert.ErrorIs(t, err, context.Canceled)
}
