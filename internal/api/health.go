package api

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/idrive-tools/e2-exporter/internal/collector"
)

// humanTimeFormat renders last-modified timestamps in the health report.
const humanTimeFormat = "2006-01-02 15:04:05"

// HealthResponse is the JSON document returned by GET /health.
type HealthResponse struct {
	Status   string                  `json:"status"` // "healthy" or "unhealthy"
	Version  string                  `json:"version"`
	Endpoint string                  `json:"endpoint"`
	LastPass *string                 `json:"last_pass"` // RFC 3339, null before the first pass completes
	Buckets  map[string]BucketReport `json:"buckets"`
	Summary  Summary                 `json:"summary"`
}

// BucketReport renders one bucket's latest outcome. Successful outcomes
// carry the stats fields; failures carry Error instead.
type BucketReport struct {
	Healthy               bool     `json:"healthy"`
	Objects               *int64   `json:"objects,omitempty"`
	SizeBytes             *int64   `json:"size_bytes,omitempty"`
	SizeGiB               *float64 `json:"size_gib,omitempty"`
	LastModified          string   `json:"last_modified,omitempty"` // "N/A" for an empty bucket
	ScrapeDurationSeconds *float64 `json:"scrape_duration_seconds,omitempty"`
	Error                 string   `json:"error,omitempty"`
	CheckedAt             string   `json:"checked_at"`
}

// Summary counts the buckets in the report by health.
type Summary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
}

// HandleHealth serves a snapshot of the health record. Status code is 200
// when overall healthy and 503 otherwise, including before the first pass
// has recorded any bucket.
func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.Health.Snapshot()

	resp := HealthResponse{
		Version:  Version,
		Endpoint: s.Endpoint,
		Buckets:  make(map[string]BucketReport, len(snap.Outcomes)),
	}
	if snap.LastPass != nil {
		t := snap.LastPass.Format(time.RFC3339)
		resp.LastPass = &t
	}

	for name, outcome := range snap.Outcomes {
		resp.Buckets[name] = bucketReport(outcome)
		resp.Summary.Total++
		if outcome.Success() {
			resp.Summary.Healthy++
		} else {
			resp.Summary.Unhealthy++
		}
	}

	if snap.Healthy {
		resp.Status = "healthy"
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Status = "unhealthy"
	writeJSON(w, http.StatusServiceUnavailable, resp)
}

// HandleRoot describes the service and its endpoints, including the
// metrics exposition endpoint on its separate port.
func (s *Server) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": ServiceName,
		"version": Version,
		"endpoints": map[string]string{
			"health":  "/health",
			"history": "/history/{bucket}",
			"metrics": fmt.Sprintf(":%d/metrics", s.MetricsPort),
		},
	})
}

func bucketReport(o collector.Outcome) BucketReport {
	report := BucketReport{
		Healthy:   o.Success(),
		CheckedAt: o.Timestamp.Format(time.RFC3339),
	}
	if !o.Success() {
		report.Error = o.Err
		return report
	}

	stats := o.Stats
	objects := stats.ObjectCount
	size := stats.TotalSize
	gib := math.Round(float64(size)/(1<<30)*100) / 100
	duration := stats.Duration.Seconds()

	report.Objects = &objects
	report.SizeBytes = &size
	report.SizeGiB = &gib
	report.ScrapeDurationSeconds = &duration
	if stats.LastModified.IsZero() {
		report.LastModified = "N/A"
	} else {
		report.LastModified = stats.LastModified.Format(humanTimeFormat)
	}
	return report
}
