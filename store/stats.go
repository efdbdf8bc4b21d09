package store

import (
	"context"
	"log/slog"
)

// Stats is a point-in-time view of cache usage. Stats are diagnostic and
// never load-bearing: any introspection failure yields a zero-value Stats.
type Stats struct {
	TotalKeys   int64      `json:"total_keys"`
	MemoryUsage int64      `json:"memory_usage"`
	HitRate     float64    `json:"hit_rate"`
	Operations  Operations `json:"operations"`
}

// GetStats derives usage statistics from store introspection and the
// operation counters.
func (s *Store) GetStats(ctx context.Context) Stats {
	totalKeys, err := s.driver.DBSize(ctx)
	if err != nil {
		slog.Warn("stats key count failed", "component", "cache", "error", err)
		return Stats{}
	}
	memoryUsage, err := s.driver.MemoryUsed(ctx)
	if err != nil {
		slog.Warn("stats memory introspection failed", "component", "cache", "error", err)
		return Stats{}
	}
	return Stats{
		TotalKeys:   totalKeys,
		MemoryUsage: memoryUsage,
		HitRate:     s.metrics.HitRate(),
		Operations:  s.metrics.Snapshot(),
	}
}
