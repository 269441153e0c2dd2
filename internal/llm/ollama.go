package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient is a direct HTTP client for the Ollama chat API.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a new Ollama client.
// baseURL should be like "http://localhost:11434".
func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 300 * time.Second},
	}
}

// Name returns the backend name.
func (o *OllamaClient) Name() string {
	return "ollama"
}

// Complete sends a non-streaming chat request to Ollama.
func (o *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	payload, err := json.Marshal(o.buildBody(req, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/chat", o.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Message: "failed to read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "ollama", Code: resp.StatusCode, Message: string(respBody)}
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ProviderError{Provider: "ollama", Message: "failed to parse response: " + err.Error()}
	}

	return &CompletionResponse{
		Content:  result.Message.Content,
		Thinking: result.Message.Thinking,
		Model:    o.model,
		Duration: time.Since(start),
	}, nil
}

// Stream sends a streaming chat request to Ollama. Connection and HTTP-level
// failures are returned synchronously so callers can retry; the channel only
// carries events from an established stream.
func (o *OllamaClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	payload, err := json.Marshal(o.buildBody(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/chat", o.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &ProviderError{Provider: "ollama", Code: resp.StatusCode, Message: string(body)}
	}

	eventChan := make(chan StreamEvent)
	go o.readStream(resp.Body, eventChan)
	return eventChan, nil
}

func (o *OllamaClient) buildBody(req CompletionRequest, stream bool) map[string]any {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Messages...)

	body := map[string]any{
		"model":    o.model,
		"messages": messages,
		"stream":   stream,
	}
	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		body["options"] = options
	}
	return body
}

func (o *OllamaClient) readStream(body io.ReadCloser, eventChan chan StreamEvent) {
	defer close(eventChan)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var content strings.Builder
	var thinking strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}

		if chunk.Error != "" {
			eventChan <- StreamEvent{Type: EventError, Error: chunk.Error}
			return
		}
		if chunk.Message.Thinking != "" {
			thinking.WriteString(chunk.Message.Thinking)
			eventChan <- StreamEvent{Type: EventThought, Content: chunk.Message.Thinking}
		}
		if chunk.Message.Content != "" {
			content.WriteString(chunk.Message.Content)
			eventChan <- StreamEvent{Type: EventDelta, Content: chunk.Message.Content}
		}
		if chunk.Done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		eventChan <- StreamEvent{Type: EventError, Error: "stream read failed: " + err.Error()}
		return
	}

	eventChan <- StreamEvent{
		Type: EventDone,
		Response: &CompletionResponse{
			Content:  content.String(),
			Thinking: thinking.String(),
			Model:    o.model,
		},
	}
}

// ollamaChatResponse is one /api/chat response object (a full response when
// stream=false, one NDJSON line when stream=true).
type ollamaChatResponse struct {
	Model     string        `json:"model"`
	CreatedAt string        `json:"created_at"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`
	Error     string        `json:"error,omitempty"`
}

type ollamaMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}
