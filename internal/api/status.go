package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/webui-wrapper/internal/history"
)

// CheckResponse is returned by POST /server/check.
type CheckResponse struct {
	Up        bool   `json:"up"`
	CheckedAt string `json:"checked_at"`
}

// handleServerStatus returns the supervisor snapshot.
func (s *Server) handleServerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Status())
}

// handleServerCheck runs one probe now, independent of the monitor.
func (s *Server) handleServerCheck(w http.ResponseWriter, r *http.Request) {
	up := s.supervisor.Check(r.Context())
	writeJSON(w, http.StatusOK, CheckResponse{
		Up:        up,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListAttempts returns launch attempts, newest first.
func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is disabled")
		return
	}
	filter, ok := parsePagination(w, r)
	if !ok {
		return
	}

	list, err := s.history.ListAttempts(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list launch attempts", "error", err)
		writeInternalError(w, "failed to list launch attempts")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleListTransitions returns health transitions, newest first.
func (s *Server) handleListTransitions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is disabled")
		return
	}
	filter, ok := parsePagination(w, r)
	if !ok {
		return
	}

	list, err := s.history.ListTransitions(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list health transitions", "error", err)
		writeInternalError(w, "failed to list health transitions")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// parsePagination reads limit and offset query parameters. On a malformed
// value it writes a 400 and returns false.
func parsePagination(w http.ResponseWriter, r *http.Request) (history.Filter, bool) {
	var f history.Filter
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return f, false
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return f, false
		}
		f.Offset = n
	}
	return f, true
}
