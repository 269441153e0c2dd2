package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tkzito/lori-llm-local/internal/agent"
	"github.com/Tkzito/lori-llm-local/internal/config"
	"github.com/Tkzito/lori-llm-local/internal/logging"
	"github.com/Tkzito/lori-llm-local/internal/store"
	"github.com/Tkzito/lori-llm-local/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

// maxFrameBytes bounds inbound WebSocket payloads. Large histories fit;
// anything bigger is a protocol violation.
const maxFrameBytes = 4 * 1024 * 1024

// Server is the Lori gateway HTTP + WebSocket server. Each /ws/chat
// connection owns one agent session.
type Server struct {
	cfg     config.Config
	auth    ResolvedAuth
	log     *logging.Logger
	clients *ClientRegistry
	runner  *agent.Runner
	archive store.Archive
	version string

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// authRateLimiter tracks failed auth attempts per IP to prevent brute-force attacks.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000 // max tracked IPs to prevent memory exhaustion
)

func newAuthRateLimiter() *authRateLimiter {
	rl := &authRateLimiter{failures: make(map[string][]time.Time)}
	go rl.periodicCleanup()
	return rl
}

// periodicCleanup removes stale entries every minute.
func (l *authRateLimiter) periodicCleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-authRateWindow)
		for ip, times := range l.failures {
			filtered := times[:0]
			for _, t := range times {
				if t.After(cutoff) {
					filtered = append(filtered, t)
				}
			}
			if len(filtered) == 0 {
				delete(l.failures, ip)
			} else {
				l.failures[ip] = filtered
			}
		}
		l.mu.Unlock()
	}
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-authRateWindow)
	recent := l.failures[host]
	filtered := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		delete(l.failures, host)
		return true
	}
	l.failures[host] = filtered
	return len(filtered) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Enforce max entries cap to prevent memory exhaustion from DDoS
	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		var oldestIP string
		var oldestTime time.Time
		for ip, times := range l.failures {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldestTime)) {
				oldestIP = ip
				oldestTime = times[0]
			}
		}
		if oldestIP != "" {
			delete(l.failures, oldestIP)
		}
	}

	l.failures[host] = append(l.failures[host], time.Now())
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithRunner sets the agent runner backing /ws/chat.
func WithRunner(r *agent.Runner) ServerOption {
	return func(s *Server) { s.runner = r }
}

// WithArchive sets the conversation archive backing the history routes.
func WithArchive(a store.Archive) ServerOption {
	return func(s *Server) { s.archive = a }
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Gateway.Auth),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		version:     version.Version,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// If no origins are configured, only same-origin (no Origin header) or non-browser
// clients are allowed. If origins are configured, the Origin must match one of them.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Same-origin or non-browser clients
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)

	handler := withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: WebSocket sessions outlive any fixed deadline.
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if !s.auth.Enabled() && s.cfg.Gateway.Bind != "loopback" {
		s.log.Warn().Msg("gateway exposed beyond loopback without an auth token")
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Bool("auth", s.auth.Enabled()).
		Msg("gateway server ready")

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleChatSocket upgrades /ws/chat and runs the session loop.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	if res := Authorize(s.auth, r); !res.OK {
		s.authLimiter.recordFailure(r.RemoteAddr)
		s.log.Warn().Str("remote", r.RemoteAddr).Str("reason", res.Reason).Msg("websocket auth failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if s.runner == nil {
		http.Error(w, "inference backend not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	client := NewClient(conn, s.log.Sub("ws"))
	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.chatLoop(r.Context(), client)
}

// chatLoop reads frames for the lifetime of one connection. Chat frames run
// as turns on the connection's session; confirmation frames resolve the
// pending gate. The read loop never blocks on a turn, so a confirmation
// answer always gets through while a turn is waiting.
func (s *Server) chatLoop(ctx context.Context, client *Client) {
	session := s.runner.NewSession()
	log := s.log.Sub("chat").Zerolog().With().
		Str("connId", client.ConnID).
		Str("sessionId", session.ID()).Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var turns sync.WaitGroup
	defer turns.Wait()

	for {
		_, data, err := client.Socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Msg("client closed connection")
			} else {
				log.Warn().Err(err).Msg("read error")
			}
			return
		}

		frame, err := ParseInbound(data)
		if err != nil {
			client.SendError(agent.KindInvalidArguments, err.Error())
			continue
		}

		switch frame.Type {
		case FrameConfirmation:
			if !session.ResolveConfirmation(*frame.Approved) {
				log.Debug().Msg("confirmation response with nothing pending")
			}

		case FrameChat:
			turn := agent.TurnRequest{
				Message:      frame.Message,
				History:      frame.DomainHistory(),
				ContextFiles: frame.ContextFiles,
			}
			turns.Add(1)
			go func() {
				defer turns.Done()
				err := s.runner.RunTurn(ctx, session, turn, client.SendEvent)
				switch {
				case err == nil:
				case errors.Is(err, agent.ErrTurnActive):
					client.SendError(agent.KindInvalidArguments, "a turn is already in progress")
				case errors.Is(err, context.Canceled):
					log.Debug().Msg("turn cancelled")
				default:
					log.Warn().Err(err).Msg("turn failed")
				}
			}()
		}
	}
}
