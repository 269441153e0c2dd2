package llm

import "context"

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	StreamFunc   func(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

func (m *MockClient) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response"}, nil
}

func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return StreamOf(
		StreamEvent{Type: EventDelta, Content: "mock "},
		StreamEvent{Type: EventDone, Response: &CompletionResponse{Content: "mock stream response"}},
	), nil
}

// StreamOf builds a closed channel pre-filled with the given events.
func StreamOf(events ...StreamEvent) <-chan StreamEvent {
	ch := make(chan StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

// StreamText builds a stream that deltas out the given chunks and finishes
// with a done event carrying the concatenated content.
func StreamText(chunks ...string) <-chan StreamEvent {
	events := make([]StreamEvent, 0, len(chunks)+1)
	var full string
	for _, c := range chunks {
		full += c
		events = append(events, StreamEvent{Type: EventDelta, Content: c})
	}
	events = append(events, StreamEvent{Type: EventDone, Response: &CompletionResponse{Content: full}})
	return StreamOf(events...)
}
