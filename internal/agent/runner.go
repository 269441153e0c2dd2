package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tkzito/lori-llm-local/internal/domain"
	"github.com/Tkzito/lori-llm-local/internal/llm"
	"github.com/Tkzito/lori-llm-local/internal/logging"
	"github.com/Tkzito/lori-llm-local/internal/sandbox"
	"github.com/Tkzito/lori-llm-local/internal/tool"
)

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	AgentName         string
	Model             string
	MaxToolIterations int
	ToolTimeout       time.Duration
	ConfirmTimeout    time.Duration
	Temperature       *float64
	ExtraPrompt       string
}

// Archiver persists finished session snapshots. A nil Archiver disables
// persistence.
type Archiver interface {
	SaveSession(ctx context.Context, sess *domain.Session) error
}

// TurnRequest is one user message plus the client's view of the conversation.
type TurnRequest struct {
	Message      string
	History      []domain.Message
	ContextFiles []string
}

// Session is one live conversation: its history, its confirmation gate, and
// the lock that serializes turns.
type Session struct {
	id     string
	gate   *ConfirmGate
	turnMu sync.Mutex
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ResolveConfirmation delivers the human's answer for the pending
// confirmation. Returns false when nothing is pending.
func (s *Session) ResolveConfirmation(approved bool) bool {
	return s.gate.Resolve(approved)
}

// PendingConfirmation exposes the active confirmation request, if any.
func (s *Session) PendingConfirmation() (ConfirmRequest, bool) {
	return s.gate.Pending()
}

// Runner drives the orchestration loop: stream the model, surface its
// thinking and answer, and execute the tool calls it emits under the sandbox
// policy and the confirmation gate.
type Runner struct {
	cfg       RunnerConfig
	client    llm.Client
	sessions  SessionStore
	tools     *tool.Registry
	policy    *sandbox.Evaluator
	heur      *Heuristics
	reader    tool.Workspace
	archive   Archiver
	log       *logging.Logger
}

// NewRunner creates an agent runner. client should already carry the retry
// policy for the inference backend.
func NewRunner(
	cfg RunnerConfig,
	client llm.Client,
	sessions SessionStore,
	tools *tool.Registry,
	policy *sandbox.Evaluator,
	heur *Heuristics,
	reader tool.Workspace,
	archive Archiver,
	log *logging.Logger,
) *Runner {
	if cfg.MaxToolIterations < 1 {
		cfg.MaxToolIterations = 6
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 60 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 120 * time.Second
	}
	return &Runner{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		tools:    tools,
		policy:   policy,
		heur:     heur,
		reader:   reader,
		archive:  archive,
		log:      log.Sub("agent"),
	}
}

// NewSession creates a fresh session.
func (r *Runner) NewSession() *Session {
	s := &Session{id: uuid.New().String(), gate: NewConfirmGate()}
	r.sessions.GetOrCreate(s.id)
	return s
}

// Sessions exposes the underlying store.
func (r *Runner) Sessions() SessionStore { return r.sessions }

// Tools exposes the tool registry.
func (r *Runner) Tools() *tool.Registry { return r.tools }

// RunTurn processes one user message, emitting events until the turn reaches
// a terminal state. Tool failures are surfaced to the model as results and
// the turn continues; the returned error is non-nil only for terminal
// failures (inference unavailable, budget exhausted, cancellation, or a
// second turn on a busy session).
func (r *Runner) RunTurn(ctx context.Context, s *Session, turn TurnRequest, emit EventSink) error {
	if !s.turnMu.TryLock() {
		return ErrTurnActive
	}
	defer s.turnMu.Unlock()

	start := time.Now()
	log := r.log.Sub("turn")

	if len(turn.History) > 0 {
		r.sessions.Reset(s.id, turn.History)
	}
	r.sessions.Append(s.id, domain.NewMessage(domain.RoleUser, turn.Message))

	// Context files are snapshotted now; changes mid-turn don't apply.
	contextFiles := r.loadContextFiles(turn.ContextFiles)
	r.sessions.SetContextFiles(s.id, contextFileMeta(contextFiles))

	log.Info().
		Str("sessionId", s.id).
		Int("historyLen", len(r.sessions.History(s.id))).
		Int("contextFiles", len(contextFiles)).
		Msg("processing message")

	if r.heur != nil {
		if answer, ok := r.heur.Shortcut(ctx, turn.Message); ok {
			emit(Event{Type: EventContent, Content: answer})
			emit(Event{Type: EventDone})
			r.sessions.Append(s.id, domain.NewMessage(domain.RoleAssistant, answer))
			r.saveSnapshot(ctx, s.id)
			log.Info().Str("sessionId", s.id).Dur("duration", time.Since(start)).Msg("answered via shortcut")
			return nil
		}
	}

	system := BuildSystemPrompt(PromptConfig{
		AgentName:    r.cfg.AgentName,
		Tools:        r.tools.Definitions(),
		ContextFiles: contextFiles,
		ExtraPrompt:  r.cfg.ExtraPrompt,
	})

	for i := 0; i < r.cfg.MaxToolIterations; i++ {
		full, err := r.streamIteration(ctx, s.id, system, emit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return r.failTurn(emit, KindInferenceUnavailable, err.Error())
		}

		call, ok := ExtractToolCall(full)
		if !ok {
			answer := StripInternal(full)
			r.sessions.Append(s.id, domain.NewMessage(domain.RoleAssistant, answer))
			emit(Event{Type: EventDone})
			r.saveSnapshot(ctx, s.id)
			log.Info().
				Str("sessionId", s.id).
				Int("iterations", i+1).
				Dur("duration", time.Since(start)).
				Msg("turn completed")
			return nil
		}

		// The raw directive stays in history so the model sees its own call.
		r.sessions.Append(s.id, domain.NewMessage(domain.RoleAssistant, full))
		emit(newToolCallEvent(call))

		result := r.resolveCall(ctx, s, call, emit)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.sessions.Append(s.id, domain.NewMessage(domain.RoleTool, formatToolResult(result)))
	}

	r.saveSnapshot(ctx, s.id)
	return r.failTurn(emit, KindTurnBudgetExceeded,
		fmt.Sprintf("no final answer after %d tool iterations", r.cfg.MaxToolIterations))
}

// streamIteration runs one model call, forwarding thinking and filtered
// content as events, and returns the full raw response text.
func (r *Runner) streamIteration(ctx context.Context, sessionID, system string, emit EventSink) (string, error) {
	req := llm.CompletionRequest{
		Model:       r.cfg.Model,
		System:      system,
		Messages:    r.sessions.History(sessionID),
		Temperature: r.cfg.Temperature,
		Stream:      true,
	}

	ch, err := r.client.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	filter := newContentFilter(func(text string) {
		emit(Event{Type: EventContent, Content: text})
	})

	var full string
	for evt := range ch {
		switch evt.Type {
		case llm.EventThought:
			emit(Event{Type: EventThought, Content: evt.Content})
		case llm.EventDelta:
			full += evt.Content
			filter.Write(evt.Content)
		case llm.EventError:
			return "", errors.Join(llm.ErrUnavailable, errors.New(evt.Error))
		case llm.EventDone:
			if evt.Response != nil && evt.Response.Content != "" {
				full = evt.Response.Content
			}
		}
	}
	filter.Flush()
	return full, nil
}

// toolOutcome is what one tool call produced, success or failure.
type toolOutcome struct {
	Tool string
	OK   bool
	Data any
	Kind ErrorKind
	Err  string
}

// resolveCall takes a parsed tool call through policy, confirmation, and
// dispatch. Every outcome is emitted as an event and returned for history.
func (r *Runner) resolveCall(ctx context.Context, s *Session, call tool.CallRequest, emit EventSink) toolOutcome {
	decision := r.policy.Evaluate(call)
	switch decision.Verdict {
	case sandbox.VerdictDeny:
		r.log.Warn().Str("tool", call.Name).Str("reason", decision.Reason).Msg("tool call denied")
		emit(newErrorEvent(KindSandboxDenied, decision.Reason))
		return toolOutcome{Tool: call.Name, Kind: KindSandboxDenied, Err: decision.Reason}

	case sandbox.VerdictConfirm:
		approved, err := s.gate.Request(ctx, call, decision.Reason, r.cfg.ConfirmTimeout, func(req ConfirmRequest) {
			emit(Event{Type: EventConfirmRequired, Data: ConfirmRequiredData{
				ID:     req.ID,
				Action: call.Name,
				Args:   call.Args,
				Reason: req.Reason,
			}})
		})
		switch {
		case errors.Is(err, ErrConfirmTimeout):
			emit(newErrorEvent(KindConfirmationTimeout, "confirmation timed out"))
			return toolOutcome{Tool: call.Name, Kind: KindConfirmationTimeout, Err: "confirmation timed out"}
		case err != nil:
			return toolOutcome{Tool: call.Name, Kind: KindConfirmationDenied, Err: err.Error()}
		case !approved:
			emit(newErrorEvent(KindConfirmationDenied, "user denied the action"))
			return toolOutcome{Tool: call.Name, Kind: KindConfirmationDenied, Err: "user denied the action"}
		}
	}

	return r.dispatch(ctx, call, emit)
}

func (r *Runner) dispatch(ctx context.Context, call tool.CallRequest, emit EventSink) toolOutcome {
	toolCtx, cancel := context.WithTimeout(ctx, r.cfg.ToolTimeout)
	defer cancel()

	r.log.Debug().Str("tool", call.Name).Msg("executing tool")
	out, err := r.tools.Dispatch(toolCtx, call)
	if err != nil {
		kind := classifyToolError(toolCtx, err)
		r.log.Warn().Str("tool", call.Name).Str("kind", string(kind)).Err(err).Msg("tool failed")
		emit(newErrorEvent(kind, err.Error()))
		return toolOutcome{Tool: call.Name, Kind: kind, Err: err.Error()}
	}

	emit(Event{Type: EventToolResult, Data: ToolResultData{Tool: call.Name, OK: true, Data: out}})
	return toolOutcome{Tool: call.Name, OK: true, Data: out}
}

func classifyToolError(toolCtx context.Context, err error) ErrorKind {
	var argErr *tool.ArgError
	switch {
	case errors.As(err, &argErr):
		return KindInvalidArguments
	case errors.Is(toolCtx.Err(), context.DeadlineExceeded):
		return KindToolTimeout
	default:
		return KindToolFailure
	}
}

// failTurn emits the terminal error and done events and returns the TurnError.
func (r *Runner) failTurn(emit EventSink, kind ErrorKind, message string) error {
	emit(newErrorEvent(kind, message))
	emit(Event{Type: EventDone})
	return &TurnError{Kind: kind, Message: message}
}

// formatToolResult renders an outcome as the <tool_result> block the model
// reads on the next iteration.
func formatToolResult(out toolOutcome) string {
	payload := map[string]any{"ok": out.OK}
	if out.OK {
		payload["data"] = out.Data
	} else {
		payload["error"] = out.Err
		payload["kind"] = string(out.Kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"ok":false,"error":"unencodable result"}`)
	}
	return "<tool_result>" + string(data) + "</tool_result>"
}

// loadContextFiles reads pinned files, bounded the same way fs.read is.
// Unreadable files are skipped; the user sees their pin fail in the prompt
// rather than the whole turn failing.
func (r *Runner) loadContextFiles(paths []string) []ContextFileContent {
	var out []ContextFileContent
	for _, raw := range paths {
		p := r.reader.Resolve(raw)
		if r.policy != nil {
			if d := r.policy.CheckRead(raw); d.Verdict == sandbox.VerdictDeny {
				r.log.Warn().Str("path", raw).Str("reason", d.Reason).Msg("context file rejected")
				continue
			}
		}
		content, err := readBounded(p, r.reader.MaxReadBytes)
		if err != nil {
			r.log.Warn().Str("path", raw).Err(err).Msg("context file unreadable")
			continue
		}
		out = append(out, ContextFileContent{Path: p, Content: content})
	}
	return out
}

func readBounded(path string, limit int64) (string, error) {
	if limit <= 0 {
		limit = tool.DefaultMaxReadBytes
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func contextFileMeta(files []ContextFileContent) []domain.ContextFile {
	meta := make([]domain.ContextFile, 0, len(files))
	for _, f := range files {
		meta = append(meta, domain.ContextFile{Path: f.Path, Size: int64(len(f.Content))})
	}
	return meta
}

func (r *Runner) saveSnapshot(ctx context.Context, sessionID string) {
	if r.archive == nil {
		return
	}
	snap := r.sessions.Snapshot(sessionID)
	if snap == nil {
		return
	}
	snap.Model = r.cfg.Model
	if err := r.archive.SaveSession(ctx, snap); err != nil {
		r.log.Warn().Str("sessionId", sessionID).Err(err).Msg("failed to archive session")
	}
}
