package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tkzito/lori-llm-local/internal/agent"
	"github.com/Tkzito/lori-llm-local/internal/logging"
)

// Client represents one authenticated WebSocket connection. Writes are
// serialized; the turn goroutine and the read loop both send frames.
type Client struct {
	ConnID      string
	Socket      *websocket.Conn
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
	log    *logging.Logger
}

// NewClient wraps a newly authenticated WebSocket connection.
func NewClient(conn *websocket.Conn, log *logging.Logger) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		Socket:      conn,
		ConnectedAt: time.Now(),
		log:         log,
	}
}

// Send writes a frame to the client. Thread-safe.
func (c *Client) Send(frame OutboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.Socket.WriteJSON(frame)
}

// SendEvent forwards an agent event to the client. Send failures are logged
// and swallowed; the turn keeps running so its session history stays whole.
func (c *Client) SendEvent(e agent.Event) {
	if err := c.Send(EncodeEvent(e)); err != nil {
		c.log.Debug().Err(err).Str("connId", c.ConnID).Str("event", string(e.Type)).Msg("event send failed")
	}
}

// SendError sends an error frame without ending the turn.
func (c *Client) SendError(kind agent.ErrorKind, message string) {
	c.SendEvent(agent.Event{
		Type:    agent.EventError,
		Data:    agent.ErrorData{Kind: kind, Message: message},
		Content: message,
	})
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Socket.Close()
}

// ClientRegistry tracks connected clients so shutdown can close them.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Msg("client connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("client disconnected")
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
