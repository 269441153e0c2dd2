package gateway

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Tkzito/lori-llm-local/internal/agent"
	"github.com/Tkzito/lori-llm-local/internal/domain"
	"github.com/Tkzito/lori-llm-local/internal/store"
)

// maxUploadBytes bounds a single multipart upload.
const maxUploadBytes = 32 * 1024 * 1024

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/chat", s.handleChatSocket)

	mux.HandleFunc("GET /history", s.requireAuth(s.handleHistoryList))
	mux.HandleFunc("GET /history/{id}", s.requireAuth(s.handleHistoryGet))
	mux.HandleFunc("DELETE /history/{id}", s.requireAuth(s.handleHistoryDelete))
	mux.HandleFunc("DELETE /history", s.requireAuth(s.handleHistoryDeleteAll))
	mux.HandleFunc("POST /upload", s.requireAuth(s.handleUpload))

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// requireAuth gates a handler behind token auth with the same rate limiting
// as the WebSocket upgrade.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		if res := Authorize(s.auth, r); !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, res.Reason)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusOK, map[string]any{"conversations": []store.ConversationSummary{}})
		return
	}
	list, err := s.archive.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("history list failed")
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if list == nil {
		list = []store.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

// historyMessage is a message as the history API exposes it, with internal
// tool markup stripped.
type historyMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "history not available")
		return
	}
	sess, err := s.archive.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("history get failed")
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	msgs := make([]historyMessage, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		if m.Role == domain.RoleTool {
			continue
		}
		content := agent.StripInternal(m.Content)
		if content == "" {
			continue
		}
		hm := historyMessage{Role: string(m.Role), Content: content}
		if !m.Timestamp.IsZero() {
			hm.Timestamp = m.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		msgs = append(msgs, hm)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           sess.ID,
		"title":        sess.Title,
		"model":        sess.Model,
		"messages":     msgs,
		"contextFiles": sess.ContextFiles,
	})
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "history not available")
		return
	}
	if err := s.archive.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.log.Error().Err(err).Msg("history delete failed")
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleHistoryDeleteAll(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "history not available")
		return
	}
	if err := s.archive.DeleteAll(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("history clear failed")
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// uploadedFile describes one stored upload, ready to use as a context file.
type uploadedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	dir := s.cfg.Gateway.UploadsDir
	if dir == "" {
		writeError(w, http.StatusServiceUnavailable, "uploads not configured")
		return
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.log.Error().Err(err).Msg("creating uploads dir failed")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	var saved []uploadedFile
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			uf, err := s.saveUpload(dir, fh)
			if err != nil {
				s.log.Warn().Err(err).Str("file", fh.Filename).Msg("upload rejected")
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			saved = append(saved, uf)
		}
	}
	if len(saved) == 0 {
		writeError(w, http.StatusBadRequest, "no files in request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": saved})
}

func (s *Server) saveUpload(dir string, fh *multipart.FileHeader) (uploadedFile, error) {
	// Uploaded names are untrusted; keep the base name only.
	base := filepath.Base(strings.TrimSpace(fh.Filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return uploadedFile{}, fmt.Errorf("invalid file name")
	}

	src, err := fh.Open()
	if err != nil {
		return uploadedFile{}, fmt.Errorf("reading upload: %w", err)
	}
	defer src.Close()

	dest := filepath.Join(dir, base)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return uploadedFile{}, fmt.Errorf("storing upload: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, src)
	if err != nil {
		os.Remove(dest)
		return uploadedFile{}, fmt.Errorf("storing upload: %w", err)
	}

	s.log.Info().Str("file", base).Int64("bytes", n).Msg("upload stored")
	return uploadedFile{Name: base, Path: dest, Size: n}, nil
}
