// Package memguard implements the memory governor: a background task that
// samples store memory usage and sheds cached data in tiers before the store
// hits its hard capacity ceiling.
package memguard

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hrygo/cachewarden/internal/profile"
	"github.com/hrygo/cachewarden/store"
)

// Level classifies memory pressure against the configured thresholds.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelEmergency:
		return "emergency"
	default:
		return "ok"
	}
}

// MemorySample is one reading of store usage.
type MemorySample struct {
	UsedBytes int64
	KeyCount  int64
	At        time.Time
}

// estimatedBytesPerKey is the fallback estimate when memory introspection
// fails.
const estimatedBytesPerKey = 100

// orphanMaxIdle is how long a key without TTL may sit untouched before the
// emergency sweep treats it as an orphan.
const orphanMaxIdle = 24 * time.Hour

// Runner periodically samples memory usage and runs tiered cleanup.
type Runner struct {
	store    *store.Store
	profile  *profile.Profile
	interval time.Duration

	// scanLimiter throttles per-key inspection during emergency orphan
	// sweeps so a full keyspace scan cannot saturate the store.
	scanLimiter *rate.Limiter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// lastKeyCount is shared between the loop goroutine and direct RunOnce
	// callers.
	lastKeyCount atomic.Int64
}

// NewRunner creates a memory governor over the given store.
func NewRunner(s *store.Store, p *profile.Profile) *Runner {
	return &Runner{
		store:       s,
		profile:     p,
		interval:    p.MonitorInterval,
		scanLimiter: rate.NewLimiter(rate.Limit(200), 50),
	}
}

// Start launches the monitoring loop. Calling Start while the loop is
// already running is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
	slog.Info("memory governor started", "interval", r.interval, "limit_bytes", r.profile.MemoryLimitBytes)
}

// Stop cancels any pending tick and waits for the loop to exit. Calling Stop
// when the loop is not running is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Sample once on startup so a process restarting under pressure does
	// not wait a full interval before acting.
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("memory governor stopped")
			return
		}
	}
}

// RunOnce performs a single sample-classify-act cycle. Any failure is logged
// and never escapes; the monitoring loop must survive every tick.
func (r *Runner) RunOnce(ctx context.Context) {
	sample := r.sample(ctx)
	level := r.Classify(sample)
	utilization := float64(sample.UsedBytes) / float64(r.profile.MemoryLimitBytes)

	switch level {
	case LevelEmergency:
		slog.Error("memory usage critical", "used_bytes", sample.UsedBytes, "keys", sample.KeyCount, "utilization", utilization)
		r.emergencyCleanup(ctx)
	case LevelWarning:
		slog.Warn("memory usage high", "used_bytes", sample.UsedBytes, "keys", sample.KeyCount, "utilization", utilization)
		r.preventiveCleanup(ctx)
	default:
		if utilization > 0.5 {
			slog.Debug("memory usage nominal", "used_bytes", sample.UsedBytes, "keys", sample.KeyCount, "utilization", utilization)
		}
	}
}

// sample reads memory usage and key count from the store. Introspection
// failures fall back to estimates rather than failing the tick.
func (r *Runner) sample(ctx context.Context) MemorySample {
	driver := r.store.GetDriver()

	keyCount, err := driver.DBSize(ctx)
	if err != nil {
		slog.Warn("key count introspection failed, using last known count", "error", err)
		keyCount = r.lastKeyCount.Load()
	} else {
		r.lastKeyCount.Store(keyCount)
	}

	usedBytes, err := driver.MemoryUsed(ctx)
	if err != nil {
		slog.Warn("memory introspection failed, estimating from key count", "error", err, "keys", keyCount)
		usedBytes = keyCount * estimatedBytesPerKey
	}

	return MemorySample{UsedBytes: usedBytes, KeyCount: keyCount, At: time.Now()}
}

// Classify maps a sample onto a pressure level.
func (r *Runner) Classify(sample MemorySample) Level {
	switch {
	case sample.UsedBytes >= r.profile.EmergencyBytes():
		return LevelEmergency
	case sample.UsedBytes >= r.profile.WarningBytes():
		return LevelWarning
	default:
		return LevelOK
	}
}

// cleanupStep is one isolated action within a tier. A failing step is logged
// and must not block the steps after it.
type cleanupStep struct {
	name string
	run  func(context.Context) error
}

func (r *Runner) runSteps(ctx context.Context, tier string, steps []cleanupStep) {
	runID := uuid.NewString()[:8]
	slog.Info("cleanup started", "tier", tier, "run", runID)
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			slog.Error("cleanup step failed", "tier", tier, "run", runID, "step", step.name, "error", err)
			continue
		}
		slog.Info("cleanup step done", "tier", tier, "run", runID, "step", step.name)
	}
}

// preventiveCleanup sheds the least-critical data: analytics is dropped
// outright, low-priority namespaces get their TTL tightened, and orphaned
// tag metadata is re-bounded.
func (r *Runner) preventiveCleanup(ctx context.Context) {
	r.runSteps(ctx, "preventive", []cleanupStep{
		{"clear analytics namespace", func(ctx context.Context) error {
			n := r.store.Clear(ctx, "*", store.WithNamespace(store.NamespaceAnalytics))
			slog.Info("analytics namespace cleared", "keys", n)
			return nil
		}},
		{"reduce voice namespace ttl", func(ctx context.Context) error {
			return r.capTTL(ctx, r.namespacePattern(store.NamespaceVoice), 900*time.Second)
		}},
		{"reduce general namespace ttl", func(ctx context.Context) error {
			return r.capTTL(ctx, r.namespacePattern(store.NamespaceGeneral), 900*time.Second)
		}},
		{"reduce ai context cache ttl", func(ctx context.Context) error {
			return r.capTTL(ctx, r.foreignPattern(r.profile.AIContextPrefix), 900*time.Second)
		}},
		{"sweep orphaned tag metadata", r.sweepTagMetadata},
	})
}

// emergencyCleanup runs the full eviction sequence in strict order: the
// least user-visible, most regenerable data is purged first.
func (r *Runner) emergencyCleanup(ctx context.Context) {
	r.runSteps(ctx, "emergency", []cleanupStep{
		{"clear analytics namespace", func(ctx context.Context) error {
			n := r.store.Clear(ctx, "*", store.WithNamespace(store.NamespaceAnalytics))
			slog.Info("analytics namespace cleared", "keys", n)
			return nil
		}},
		{"clear voice transcription cache", func(ctx context.Context) error {
			return r.clearForeign(ctx, r.profile.VoiceTranscriptPrefix)
		}},
		{"delete orphaned keys", r.deleteOrphans},
		{"force messages namespace ttl", func(ctx context.Context) error {
			return r.capTTL(ctx, r.namespacePattern(store.NamespaceMessages), 300*time.Second)
		}},
		{"clear ai context cache", func(ctx context.Context) error {
			return r.clearForeign(ctx, r.profile.AIContextPrefix)
		}},
	})
}

func (r *Runner) namespacePattern(ns store.Namespace) string {
	return r.profile.KeyPrefix + string(ns) + ":*"
}

func (r *Runner) foreignPattern(prefix string) string {
	return r.profile.KeyPrefix + prefix + ":*"
}

// capTTL lowers the TTL of every key matching pattern to at most ceiling.
// Keys without an expiry get one.
func (r *Runner) capTTL(ctx context.Context, pattern string, ceiling time.Duration) error {
	driver := r.store.GetDriver()
	keys, err := driver.Keys(ctx, pattern)
	if err != nil {
		return err
	}
	capped := 0
	for _, key := range keys {
		ttl, err := driver.TTL(ctx, key)
		if err != nil {
			slog.Warn("ttl lookup failed during cleanup", "key", key, "error", err)
			continue
		}
		if ttl < 0 || ttl > ceiling {
			if _, err := driver.Expire(ctx, key, ceiling); err != nil {
				slog.Warn("ttl cap failed", "key", key, "error", err)
				continue
			}
			capped++
		}
	}
	slog.Info("ttl capped", "pattern", pattern, "keys", capped, "max", ceiling)
	return nil
}

// clearForeign bulk-deletes a foreign cache sharing our store instance.
func (r *Runner) clearForeign(ctx context.Context, prefix string) error {
	driver := r.store.GetDriver()
	keys, err := driver.Keys(ctx, r.foreignPattern(prefix))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	n, err := driver.Del(ctx, keys...)
	if err != nil {
		return err
	}
	slog.Info("foreign cache cleared", "prefix", prefix, "keys", n)
	return nil
}

// sweepTagMetadata puts a TTL back on tag sets that lost theirs, so stale
// tag indexes cannot accumulate forever.
func (r *Runner) sweepTagMetadata(ctx context.Context) error {
	driver := r.store.GetDriver()
	keys, err := driver.Keys(ctx, r.profile.KeyPrefix+"tag:*")
	if err != nil {
		return err
	}
	swept := 0
	for _, key := range keys {
		ttl, err := driver.TTL(ctx, key)
		if err != nil {
			slog.Warn("ttl lookup failed during tag sweep", "key", key, "error", err)
			continue
		}
		if ttl >= 0 {
			continue
		}
		if _, err := driver.Expire(ctx, key, 2*r.profile.DefaultTTL); err != nil {
			slog.Warn("tag set expire failed during sweep", "key", key, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		slog.Info("orphaned tag sets re-bounded", "keys", swept)
	}
	return nil
}

// deleteOrphans removes keys that have no TTL and have been idle for more
// than a day. The scan is rate-limited.
func (r *Runner) deleteOrphans(ctx context.Context) error {
	driver := r.store.GetDriver()
	keys, err := driver.Keys(ctx, r.profile.KeyPrefix+"*")
	if err != nil {
		return err
	}
	deleted := 0
	for _, key := range keys {
		if err := r.scanLimiter.Wait(ctx); err != nil {
			return err
		}
		ttl, err := driver.TTL(ctx, key)
		if err != nil || ttl >= 0 {
			continue
		}
		idle, err := driver.IdleTime(ctx, key)
		if err != nil {
			slog.Warn("idle time lookup failed during orphan sweep", "key", key, "error", err)
			continue
		}
		if idle <= orphanMaxIdle {
			continue
		}
		if _, err := driver.Del(ctx, key); err != nil {
			slog.Warn("orphan delete failed", "key", key, "error", err)
			continue
		}
		deleted++
	}
	slog.Info("orphaned keys deleted", "keys", deleted)
	return nil
}
