package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Model         string `json:"model,omitempty"`
	Clients       int    `json:"clients"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// handleHealth reports liveness. It is the only unauthenticated route.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.version,
		Model:         s.cfg.Ollama.Model,
		Clients:       s.clients.Count(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
