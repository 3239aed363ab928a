package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// HandleHistory serves the most recent persisted usage rows for a bucket,
// newest first. Answers 503 when no history store is configured.
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		errorJSON(w, "usage history is not configured", http.StatusServiceUnavailable)
		return
	}

	bucket := chi.URLParam(r, "bucket")

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.History.ListUsage(r.Context(), bucket, limit)
	if err != nil {
		slog.Error("history query failed", "bucket", bucket, "error", err)
		errorJSON(w, "failed to query usage history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bucket":  bucket,
		"entries": entries,
	})
}
