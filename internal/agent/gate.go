package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tkzito/lori-llm-local/internal/tool"
)

// ConfirmRequest describes a tool call awaiting human approval.
type ConfirmRequest struct {
	ID          string
	Call        tool.CallRequest
	Reason      string
	RequestedAt time.Time
}

// ConfirmGate is a per-session rendezvous between the turn asking for
// approval and the transport delivering the human's answer. At most one
// request is outstanding; a second Request blocks until the first resolves,
// so a queued request never overwrites an active one.
type ConfirmGate struct {
	slot chan struct{}

	mu      sync.Mutex
	pending *pendingConfirm
}

type pendingConfirm struct {
	req      ConfirmRequest
	decision chan bool
}

// NewConfirmGate creates a gate with an empty slot.
func NewConfirmGate() *ConfirmGate {
	return &ConfirmGate{slot: make(chan struct{}, 1)}
}

// Request takes the slot, publishes the request through post, and waits for
// Resolve, the timeout, or ctx. post runs only once the request is the
// active one; a request queued behind another is not announced early.
func (g *ConfirmGate) Request(ctx context.Context, call tool.CallRequest, reason string, timeout time.Duration, post func(ConfirmRequest)) (bool, error) {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-g.slot }()

	p := &pendingConfirm{
		req: ConfirmRequest{
			ID:          uuid.New().String(),
			Call:        call,
			Reason:      reason,
			RequestedAt: time.Now().UTC(),
		},
		decision: make(chan bool, 1),
	}

	g.mu.Lock()
	g.pending = p
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		if g.pending == p {
			g.pending = nil
		}
		g.mu.Unlock()
	}()

	if post != nil {
		post(p.req)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case approved := <-p.decision:
		return approved, nil
	case <-timer.C:
		return false, ErrConfirmTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resolve delivers the human's answer to the active request. Returns false
// when there is nothing pending, which makes duplicate and late responses
// harmless no-ops.
func (g *ConfirmGate) Resolve(approved bool) bool {
	g.mu.Lock()
	p := g.pending
	g.pending = nil
	g.mu.Unlock()

	if p == nil {
		return false
	}
	select {
	case p.decision <- approved:
		return true
	default:
		return false
	}
}

// Pending returns a copy of the active request, if any.
func (g *ConfirmGate) Pending() (ConfirmRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return ConfirmRequest{}, false
	}
	return g.pending.req, true
}
