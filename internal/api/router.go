// Package api serves the exporter's JSON health endpoints. The health
// server is independent of the Prometheus exposition endpoint and answers
// entirely from health.State snapshots, decoupled from collection timing.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/idrive-tools/e2-exporter/internal/health"
)

// Version is the exporter's declared version. Set via -ldflags at build
// time:
//
//	go build -ldflags "-X api.Version=1.1.0"
var Version = "1.0.0"

// ServiceName identifies the exporter in the root document and logs.
const ServiceName = "idrive-e2-exporter"

// UsageEntry is one persisted usage-history row.
type UsageEntry struct {
	Bucket       string     `json:"bucket"`
	SizeBytes    int64      `json:"size_bytes"`
	ObjectCount  int64      `json:"object_count"`
	LastModified *time.Time `json:"last_modified"`
	ScrapedAt    time.Time  `json:"scraped_at"`
}

// UsageStore queries persisted usage history, newest first.
// Implemented by postgres.UsageStore.
type UsageStore interface {
	ListUsage(ctx context.Context, bucket string, limit int) ([]UsageEntry, error)
}

// Server holds the health API's dependencies.
type Server struct {
	Health      *health.State
	Endpoint    string     // configured store endpoint, echoed for visibility
	MetricsPort int        // advertised in the root endpoint listing
	History     UsageStore // optional; /history answers 503 when nil
	CORSOrigins []string
}

// NewRouter builds the health API router with its middleware chain.
func NewRouter(srv *Server) chi.Router {
	r := chi.NewRouter()

	corsOrigins := srv.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", srv.HandleRoot)
	r.Get("/health", srv.HandleHealth)
	r.Get("/history/{bucket}", srv.HandleHistory)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errorJSON(w, "not found", http.StatusNotFound)
	})

	return r
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// errorJSON writes a JSON error body with the given status code.
func errorJSON(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
