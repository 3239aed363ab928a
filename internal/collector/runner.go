package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// fallbackDelay is how long the run loop waits after a recovered panic
// before resuming the normal schedule.
const fallbackDelay = 60 * time.Second

// Sink receives metric updates for each bucket outcome and for overall
// exporter health. Implemented by metrics.Metrics.
type Sink interface {
	ObserveOutcome(o Outcome)
	SetExporterHealthy(healthy bool)
}

// HealthRecorder receives per-bucket outcomes and the pass summary.
// Implemented by health.State.
type HealthRecorder interface {
	Record(o Outcome)
	FinalizePass(healthy bool, ts time.Time)
}

// UsageRecorder persists successful bucket stats for later inspection.
// Optional; implemented by postgres.UsageStore.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, stats BucketStats) error
}

// PassSummary describes one full sweep over the configured buckets.
type PassSummary struct {
	Started   time.Time
	Completed time.Time
	Healthy   bool
	Succeeded int
	Failed    int
}

// Runner drives collection passes across all configured buckets on a
// fixed interval (or an optional cron schedule), forever. Buckets are
// processed strictly sequentially within a pass.
type Runner struct {
	store    StoreClient
	sink     Sink
	health   HealthRecorder
	history  UsageRecorder
	buckets  []string
	interval time.Duration
	schedule cron.Schedule
	fallback time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRunner creates a Runner over the given buckets with a fixed pass
// interval.
func NewRunner(store StoreClient, sink Sink, health HealthRecorder, buckets []string, interval time.Duration) *Runner {
	return &Runner{
		store:    store,
		sink:     sink,
		health:   health,
		buckets:  buckets,
		interval: interval,
		fallback: fallbackDelay,
	}
}

// WithSchedule switches the runner from the fixed interval to a standard
// five-field cron schedule.
func (r *Runner) WithSchedule(spec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse scrape schedule %q: %w", spec, err)
	}
	r.schedule = sched
	return nil
}

// WithHistory wires an optional usage history recorder. Recording
// failures are logged and do not fail the pass.
func (r *Runner) WithHistory(rec UsageRecorder) {
	r.history = rec
}

// Preflight verifies store connectivity by listing all visible buckets.
// A configured bucket missing from the listing is only warned about — it
// may exist but be inaccessible to a listing call. Preflight fails only
// when the listing call itself fails.
func (r *Runner) Preflight(ctx context.Context) error {
	slog.Info("preflight: listing buckets")
	visible, err := r.store.ListBuckets(ctx)
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}

	slog.Info("preflight: connection successful", "visible_buckets", len(visible))
	names := make(map[string]bool, len(visible))
	for _, b := range visible {
		names[b.Name] = true
		slog.Info("preflight: visible bucket", "bucket", b.Name)
	}

	for _, bucket := range r.buckets {
		bucket = strings.TrimSpace(bucket)
		if bucket != "" && !names[bucket] {
			slog.Warn("preflight: configured bucket not visible to credentials", "bucket", bucket)
		}
	}
	return nil
}

// RunPass collects every configured bucket in order, pushing each outcome
// into the metrics sink and the health record as it completes. Overall
// health is true only when every processed bucket succeeded and at least
// one bucket was processed.
func (r *Runner) RunPass(ctx context.Context) PassSummary {
	summary := PassSummary{Started: time.Now()}
	slog.Info("collector: starting pass", "buckets", len(r.buckets))

	processed := 0
	healthy := true
	for _, bucket := range r.buckets {
		bucket = strings.TrimSpace(bucket)
		if bucket == "" {
			continue
		}

		outcome := Collect(ctx, r.store, bucket)
		r.sink.ObserveOutcome(outcome)
		r.health.Record(outcome)
		processed++

		if !outcome.Success() {
			summary.Failed++
			healthy = false
			continue
		}
		summary.Succeeded++

		stats := outcome.Stats
		slog.Info("collector: bucket collected",
			"bucket", bucket,
			"objects", stats.ObjectCount,
			"size_bytes", stats.TotalSize,
			"duration", stats.Duration,
		)
		if r.history != nil {
			if err := r.history.RecordUsage(ctx, *stats); err != nil {
				slog.Warn("collector: failed to record usage history", "bucket", bucket, "error", err)
			}
		}
	}

	// A pass over zero non-blank buckets is unhealthy: overall health
	// requires at least one collected bucket.
	if processed == 0 {
		healthy = false
	}

	summary.Completed = time.Now()
	summary.Healthy = healthy
	r.health.FinalizePass(healthy, summary.Completed)
	r.sink.SetExporterHealthy(healthy)

	slog.Info("collector: pass complete",
		"healthy", healthy,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", summary.Completed.Sub(summary.Started),
	)
	return summary
}

// Start begins the background collection loop: one pass immediately, then
// one per interval (or cron schedule). A failed pass does not stop the
// loop; buckets are simply retried on the next pass.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		r.safePass(ctx)

		for {
			wait := r.interval
			if r.schedule != nil {
				wait = time.Until(r.schedule.Next(time.Now()))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				r.safePass(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to finish. An in-flight pass
// runs to completion; collection is not interrupted mid-bucket.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

// safePass runs one pass, recovering from any panic so a bug in a single
// pass cannot take the process down. After a recovered panic the loop
// waits the fallback delay before resuming the normal schedule.
func (r *Runner) safePass(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("collector: pass panicked", "panic", p)
			select {
			case <-ctx.Done():
			case <-time.After(r.fallback):
			}
		}
	}()

	// Shutdown cancels the loop between passes; the pass itself keeps an
	// uncancellable context so it finishes the current bucket cleanly.
	r.RunPass(context.WithoutCancel(ctx))
}
